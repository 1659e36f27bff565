package sim

import (
	"math"
	"sort"

	"github.com/rayonsim/rayon/state"
)

type link struct {
	from, to state.NodeId
}

// Topology holds the precomputed pairwise gain matrix. Gains derive from
// log-distance path loss over the scenario's node coordinates; a scenario
// may pin individual directed links to exact values. The matrix is built
// once and never mutated, so concurrent reads need no locking.
type Topology struct {
	gains map[link]float64
	reach map[state.NodeId][]state.NodeId
}

func NewTopology(cfg *state.SimCfg) *Topology {
	p := cfg.Protocol
	t := &Topology{
		gains: make(map[link]float64),
		reach: make(map[state.NodeId][]state.NodeId),
	}
	for i := range cfg.Nodes {
		for j := range cfg.Nodes {
			if i == j {
				continue
			}
			a, b := &cfg.Nodes[i], &cfg.Nodes[j]
			d := math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
			if d < 1 {
				d = 1
			}
			loss := p.PathLossRefDb + 10*p.PathLossExp*math.Log10(d)
			t.gains[link{a.Id, b.Id}] = p.TxPowerDbm - loss
		}
	}
	for _, g := range cfg.Gains {
		t.gains[link{g.From, g.To}] = g.Dbm
	}
	for i := range cfg.Nodes {
		src := cfg.Nodes[i].Id
		var hearers []state.NodeId
		for j := range cfg.Nodes {
			dst := cfg.Nodes[j].Id
			if dst == src {
				continue
			}
			if g, ok := t.gains[link{src, dst}]; ok && g >= p.DeliveryFloorDbm {
				hearers = append(hearers, dst)
			}
		}
		sort.Slice(hearers, func(a, b int) bool { return hearers[a] < hearers[b] })
		t.reach[src] = hearers
	}
	return t
}

func (t *Topology) Gain(src, dst state.NodeId) (float64, bool) {
	g, ok := t.gains[link{src, dst}]
	return g, ok
}

func (t *Topology) Reachable(src state.NodeId) []state.NodeId {
	return t.reach[src]
}
