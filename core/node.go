package core

import (
	"log/slog"

	"github.com/rayonsim/rayon/state"
)

// Node assembles one sensor node's full stack. All cross-module wiring
// happens here; the modules themselves only know the narrow interfaces
// they consume.
type Node struct {
	env  *state.Env
	self state.NodeId

	Links  *LinkEstimator
	Routes *RoutingEngine
	Fwd    *ForwardingEngine
	Mac    *Csma
	Phy    *Phy
}

func NewNode(env *state.Env, self state.NodeId, isRoot bool, collectGoal int, noiseRange float64) *Node {
	n := &Node{env: env, self: self}
	n.Links = NewLinkEstimator(env)
	n.Mac = NewCsma(env, self)
	n.Routes = NewRoutingEngine(env, self, isRoot, n.Links, n.Mac)
	n.Fwd = NewForwardingEngine(env, self, isRoot, collectGoal, n.Routes, n.Links, n.Mac)
	n.Phy = NewPhy(env, self, noiseRange, n.Mac)

	n.Routes.CongestionSource(n.Fwd.IsCongested)
	n.Links.OnEvicted(n.Routes.OnNeighborEvicted)
	n.Mac.Attach(n.Phy, n.onSendDone, n.onFrame)
	return n
}

func (n *Node) Id() state.NodeId { return n.self }

// Start arms the node's periodic timers. Nothing runs before this.
func (n *Node) Start() { n.Routes.Start() }

// Done reports whether this node's part of the run is finished.
func (n *Node) Done() bool { return n.Fwd.Done() }

// HandleEvent is the node's single entry point from the scheduler. Events
// are routed to the module that armed or addressed them.
func (n *Node) HandleEvent(ev state.Event) {
	switch ev.(type) {
	case state.RouteUpdateTimer, state.BeaconTimer, state.BeaconIntervalTimer:
		n.Routes.HandleEvent(ev)
	case state.RetryTimer, state.ForwardDelayTimer, state.SendRequest:
		n.Fwd.HandleEvent(ev)
	case state.BackoffTimer, state.SampleTimer, state.TxBeginTimer, state.TxDoneTimer:
		n.Mac.HandleEvent(ev)
	case state.TransmissionStarted, state.TransmissionEnded:
		n.Phy.HandleEvent(ev)
	default:
		n.env.Log.Warn("unhandled event", "event", ev)
	}
}

// onSendDone is the link layer's completion callback, routed to the layer
// that originated the frame.
func (n *Node) onSendDone(f state.Frame, ok bool) {
	switch f.Type {
	case state.FrameData:
		n.Fwd.OnSendDone(ok)
	case state.FrameBeacon:
		n.Routes.OnSendDone(ok)
	}
}

// onFrame dispatches a decoded frame. Beacons feed both link estimation
// and routing; the estimator must account the beacon before routing reads
// the neighbor's quality.
func (n *Node) onFrame(f state.Frame) {
	switch f.Type {
	case state.FrameBeacon:
		n.Links.RecordBeacon(f.Beacon.Origin, f.Beacon.Seqno)
		n.Routes.OnBeacon(f.Beacon)
	case state.FrameData:
		n.Fwd.OnReceive(f.Data)
	case state.FrameAck:
		n.Fwd.OnAck(f.AckKey)
	default:
		n.env.Log.Warn("unknown frame type", slog.Int("type", int(f.Type)))
	}
}
