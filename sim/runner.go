package sim

import (
	"log/slog"
	"time"

	"github.com/rayonsim/rayon/core"
	"github.com/rayonsim/rayon/state"
)

// Runner owns one simulation: the scheduler, the gain matrix and every
// node's stack. It is single-threaded; Run drives the event loop to
// completion on the calling goroutine.
type Runner struct {
	cfg   *state.SimCfg
	sched *Scheduler
	topo  *Topology
	nodes map[state.NodeId]*core.Node
	// order preserves the scenario's node order so startup consumes
	// randomness identically on every run with the same seed
	order []state.NodeId
	root  *core.Node
}

// Result summarizes a finished run.
type Result struct {
	// Collected is how many distinct packets the root gathered.
	Collected int
	// Elapsed is the virtual time at which the run stopped.
	Elapsed time.Duration
	// Finished is true when the collect goal was met, false when the run
	// hit the horizon or ran out of events first.
	Finished bool
}

func NewRunner(cfg *state.SimCfg, log *slog.Logger, metrics *state.Metrics) *Runner {
	r := &Runner{
		cfg:   cfg,
		sched: NewScheduler(cfg.Seed),
		topo:  NewTopology(cfg),
		nodes: make(map[state.NodeId]*core.Node),
	}
	for i := range cfg.Nodes {
		id := cfg.Nodes[i].Id
		env := &state.Env{
			Proto:   cfg.Protocol,
			Sched:   r.sched,
			Topo:    r.topo,
			Log:     log.With("node", int(id)),
			Metrics: metrics,
		}
		r.nodes[id] = core.NewNode(env, id, id == cfg.Root, cfg.CollectGoal, cfg.NoiseRange(id))
		r.order = append(r.order, id)
	}
	r.root = r.nodes[cfg.Root]
	return r
}

func (r *Runner) Node(id state.NodeId) *core.Node { return r.nodes[id] }

// Run starts every node, injects the scenario's traffic and drains the
// event queue until the root has met its collect goal, the horizon is
// reached, or no events remain.
func (r *Runner) Run() Result {
	for _, id := range r.order {
		r.nodes[id].Start()
	}
	for _, tr := range r.cfg.Traffic {
		for i := 0; i < tr.Count; i++ {
			at := tr.At + time.Duration(i)*tr.Interval
			payload := int32(tr.Node)<<16 | int32(i)
			r.sched.Schedule(tr.Node, at, state.SendRequest{Payload: payload})
		}
	}

	for {
		if r.root.Done() {
			return Result{Collected: r.root.Fwd.Collected(), Elapsed: r.sched.Now(r.cfg.Root), Finished: true}
		}
		node, ev, ok := r.sched.Next()
		if !ok {
			break
		}
		if r.cfg.Horizon > 0 && r.sched.Now(node) > r.cfg.Horizon {
			break
		}
		if n := r.nodes[node]; n != nil {
			n.HandleEvent(ev)
		}
	}
	return Result{Collected: r.root.Fwd.Collected(), Elapsed: r.sched.Now(r.cfg.Root), Finished: false}
}
