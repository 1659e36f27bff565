package core

import (
	"time"

	"github.com/rayonsim/rayon/state"
)

// RouteEntry tracks one neighbor's route claim: who it says its parent is
// and at what multi-hop cost. Distinct from the link estimator table, which
// tracks measured link quality for the same neighbor identity space.
type RouteEntry struct {
	Neighbor  state.NodeId
	Parent    state.NodeId
	Etx       uint16
	Congested bool
}

// Route is the node's current route singleton. Etx is the parent's declared
// multi-hop cost; the live path cost adds the measured one-hop ETX on top
// (see CurrentEtx).
type Route struct {
	Parent    state.NodeId
	Etx       uint16
	Congested bool
}

// FrameSender hands frames to the link layer. Send reports false when the
// link layer is already busy with a frame.
type FrameSender interface {
	Send(f state.Frame) bool
}

// RoutingEngine selects the parent by multi-hop ETX and drives the adaptive
// beacon timer. A designated root never has a parent and always advertises
// cost zero.
type RoutingEngine struct {
	env    *state.Env
	self   state.NodeId
	isRoot bool
	links  LinkTable
	sender FrameSender
	// congested reports the forwarding engine's local congestion signal.
	congested func() bool

	table []RouteEntry
	cur   Route
	// lastEtx is the most recent advertised cost, re-sent while no parent
	// is known so neighbors still see a (stale) cost estimate.
	lastEtx   uint16
	beaconSeq uint8

	// Trickle state. gen invalidates beacon timers armed before a reset.
	interval time.Duration
	gen      uint32
}

func NewRoutingEngine(env *state.Env, self state.NodeId, isRoot bool, links LinkTable, sender FrameSender) *RoutingEngine {
	re := &RoutingEngine{
		env:       env,
		self:      self,
		isRoot:    isRoot,
		links:     links,
		sender:    sender,
		congested: func() bool { return false },
		table:     make([]RouteEntry, 0, env.Proto.RoutingTableSize),
		cur:       Route{Parent: state.NoNode, Etx: state.INF},
		lastEtx:   state.INF,
	}
	if isRoot {
		re.cur.Etx = 0
		re.lastEtx = 0
	}
	return re
}

// CongestionSource wires the forwarding engine's congestion signal in after
// construction; the two engines reference each other.
func (re *RoutingEngine) CongestionSource(fn func() bool) { re.congested = fn }

// Start arms the periodic route recompute and the first beacon interval.
// The recompute phase is jittered so nodes do not scan in lockstep.
func (re *RoutingEngine) Start() {
	jitter := time.Duration(re.env.Sched.RandFloat64() * float64(re.env.Proto.RouteUpdatePeriod))
	re.env.Sched.Schedule(re.self, jitter, state.RouteUpdateTimer{})
	re.ResetBeaconInterval()
}

func (re *RoutingEngine) HasRoute() bool {
	return re.isRoot || (re.cur.Parent != state.NoNode && re.CurrentEtx() != state.INF)
}

func (re *RoutingEngine) Parent() state.NodeId { return re.cur.Parent }

func (re *RoutingEngine) Current() Route { return re.cur }

// CurrentEtx is the node's own multi-hop cost to the root: the parent's
// declared cost plus the measured one-hop cost of reaching it.
func (re *RoutingEngine) CurrentEtx() uint16 {
	if re.isRoot {
		return 0
	}
	if re.cur.Parent == state.NoNode {
		return state.INF
	}
	return AddEtx(re.links.OneHopEtx(re.cur.Parent), re.cur.Etx)
}

// ResetBeaconInterval drops the Trickle interval back to its minimum and
// re-arms the send timer, invalidating any timers from the old interval.
func (re *RoutingEngine) ResetBeaconInterval() {
	re.interval = re.env.Proto.MinBeaconInterval
	re.armInterval()
}

func (re *RoutingEngine) armInterval() {
	re.gen++
	re.env.Sched.Schedule(re.self, re.interval, state.BeaconIntervalTimer{Gen: re.gen})
	// exactly one beacon per interval, at a uniform point in [I/2, I)
	half := re.interval / 2
	at := half + time.Duration(re.env.Sched.RandFloat64()*float64(half))
	re.env.Sched.Schedule(re.self, at, state.BeaconTimer{Gen: re.gen})
}

// HandleEvent processes the routing engine's timers. Stale-generation
// timers are no-ops: scheduled events cannot be cancelled.
func (re *RoutingEngine) HandleEvent(ev state.Event) {
	switch e := ev.(type) {
	case state.RouteUpdateTimer:
		re.Recompute()
		re.env.Sched.Schedule(re.self, re.env.Proto.RouteUpdatePeriod, state.RouteUpdateTimer{})
	case state.BeaconTimer:
		if e.Gen != re.gen {
			return
		}
		re.sendBeacon()
	case state.BeaconIntervalTimer:
		if e.Gen != re.gen {
			return
		}
		re.interval = min(re.interval*2, re.env.Proto.MaxBeaconInterval)
		re.armInterval()
	}
}

// BeaconInterval is exposed for tests and the runner's progress logging.
func (re *RoutingEngine) BeaconInterval() time.Duration { return re.interval }

func (re *RoutingEngine) sendBeacon() {
	b := re.buildBeacon()
	ok := re.sender.Send(state.Frame{
		Type:   state.FrameBeacon,
		Src:    re.self,
		Dst:    state.Broadcast,
		Beacon: &b,
	})
	if ok {
		re.env.Metrics.BeaconsSent.Inc()
	} else {
		// link layer busy with another frame; this interval's beacon is lost
		re.env.Log.Debug("beacon skipped, link busy", "seq", b.Seqno)
	}
}

func (re *RoutingEngine) buildBeacon() state.Beacon {
	b := state.Beacon{
		Origin:    re.self,
		Seqno:     re.beaconSeq,
		Congested: re.congested(),
	}
	re.beaconSeq++
	switch {
	case re.isRoot:
		// a root is its own parent on the wire, at cost zero
		b.Parent = re.self
		b.Etx = 0
	case re.cur.Parent == state.NoNode:
		b.Parent = state.NoNode
		b.Etx = re.lastEtx
		b.Pull = true
	default:
		b.Parent = re.cur.Parent
		b.Etx = re.CurrentEtx()
		re.lastEtx = b.Etx
	}
	return b
}

func (re *RoutingEngine) find(n state.NodeId) int {
	for i := range re.table {
		if re.table[i].Neighbor == n {
			return i
		}
	}
	return -1
}

// OnSendDone is the link layer's completion callback for beacons. A beacon
// that lost channel access is simply gone until the next interval fires,
// but the loss is still counted.
func (re *RoutingEngine) OnSendDone(ok bool) {
	if ok {
		return
	}
	re.env.Metrics.BeaconsLost.Inc()
	re.env.Log.Debug("beacon lost to channel access")
}

// OnBeacon digests a neighbor's route claim. The link estimator has already
// accounted the beacon for quality purposes.
func (re *RoutingEngine) OnBeacon(b *state.Beacon) {
	sender := b.Origin

	// a zero-cost claim with a valid parent is a directly heard root; keep
	// it in the neighbor table no matter what
	if b.Parent != state.NoNode && b.Etx == 0 {
		re.links.ForceInsertPinned(sender)
	}

	if idx := re.find(sender); idx != -1 {
		congChanged := sender == re.cur.Parent && b.Congested != re.cur.Congested
		re.table[idx] = RouteEntry{Neighbor: sender, Parent: b.Parent, Etx: b.Etx, Congested: b.Congested}
		if sender == re.cur.Parent {
			re.cur.Etx = b.Etx
			re.cur.Congested = b.Congested
		}
		if congChanged {
			re.Recompute()
		}
	} else if len(re.table) < re.env.Proto.RoutingTableSize &&
		re.links.OneHopEtx(sender) < re.env.Proto.MaxOneHopEtx {
		re.table = append(re.table, RouteEntry{Neighbor: sender, Parent: b.Parent, Etx: b.Etx, Congested: b.Congested})
		re.Recompute()
	}
	// table full with no matching entry: dropped silently

	if b.Pull {
		re.ResetBeaconInterval()
	}
}

// OnNeighborEvicted removes the evicted neighbor's route claim. Losing the
// current parent clears the route and recomputes immediately.
func (re *RoutingEngine) OnNeighborEvicted(n state.NodeId) {
	if idx := re.find(n); idx != -1 {
		re.table = append(re.table[:idx], re.table[idx+1:]...)
	}
	if n == re.cur.Parent {
		re.cur = Route{Parent: state.NoNode, Etx: state.INF}
		re.Recompute()
	}
}

// Recompute re-selects the best parent. Roots never route.
func (re *RoutingEngine) Recompute() {
	if re.isRoot {
		return
	}
	next, switched := selectRoute(re.self, re.table, re.cur, re.links, re.env.Proto)
	if switched {
		if re.cur.Parent != state.NoNode {
			re.links.Unpin(re.cur.Parent)
		}
		re.links.Pin(next.Parent)
		re.links.ClearDataCounters(next.Parent)
		re.env.Metrics.ParentSwitches.Inc()
		re.env.Log.Debug("parent switched",
			"from", re.cur.Parent, "to", next.Parent, "etx", next.Etx)
	}
	re.cur = next
}

// selectRoute scans the routing table for the cheapest usable candidate and
// applies the switch policy against the current route. It is pure: callers
// apply pinning and metrics when switched is true.
func selectRoute(self state.NodeId, table []RouteEntry, cur Route, links LinkTable, proto *state.ProtocolCfg) (next Route, switched bool) {
	curTotal := uint16(state.INF)
	curRaw := uint16(state.INF)
	curCongested := false

	best := -1
	bestTotal := uint16(state.INF)
	for i := range table {
		e := &table[i]
		// a claim of no parent is useless; a claim that we are the parent
		// marks a descendant, never a parent candidate
		if e.Parent == state.NoNode || e.Parent == self {
			continue
		}
		one := links.OneHopEtx(e.Neighbor)
		if e.Neighbor == cur.Parent {
			// the current parent is costed the same way but is never
			// excluded for congestion
			if one < proto.MaxOneHopEtx {
				curTotal = AddEtx(one, e.Etx)
				curRaw = e.Etx
				curCongested = e.Congested
			}
			continue
		}
		if one >= proto.MaxOneHopEtx || e.Congested {
			continue
		}
		total := AddEtx(one, e.Etx)
		if total < bestTotal {
			best, bestTotal = i, total
		}
	}

	if best == -1 {
		return cur, false
	}
	cand := table[best]

	switch {
	case cur.Parent == state.NoNode:
		switched = true
	case curTotal == state.INF:
		// the current parent degraded past the usable threshold
		switched = true
	case curCongested && bestTotal < AddEtx(curRaw, state.EtxUnit):
		// flee congestion, but only to candidates within one hop of the
		// parent's own claimed cost, or we might pick a descendant
		switched = true
	case AddEtx(bestTotal, proto.ParentSwitchThreshold) <= curTotal:
		switched = true
	}

	if !switched {
		return cur, false
	}
	if cand.Neighbor == cur.Parent {
		return cur, false
	}
	return Route{Parent: cand.Neighbor, Etx: cand.Etx, Congested: cand.Congested}, true
}
