package core

import (
	"github.com/jellydator/ttlcache/v3"
	"github.com/rayonsim/rayon/state"
)

// RouteProvider is the slice of the routing engine the forwarding engine
// consults on every send decision.
type RouteProvider interface {
	HasRoute() bool
	Parent() state.NodeId
	CurrentEtx() uint16
	Recompute()
	ResetBeaconInterval()
}

// AckRecorder feeds data-plane acknowledgment outcomes back into link
// estimation.
type AckRecorder interface {
	RecordAck(n state.NodeId, acked bool)
}

type queueEntry struct {
	pkt     state.DataPacket
	retries int
}

type originSeq struct {
	Origin state.NodeId
	Seqno  uint16
}

// ForwardingEngine owns the outgoing packet queue: a bounded FIFO whose
// head is retried in place until acknowledged or its retry budget runs out.
type ForwardingEngine struct {
	env    *state.Env
	self   state.NodeId
	isRoot bool
	routes RouteProvider
	links  AckRecorder
	sender FrameSender

	queue []queueEntry // ring buffer, fixed capacity
	head  int
	count int
	// cache remembers recently transmitted packet keys; capacity eviction
	// removes the least recently inserted entry.
	cache *ttlcache.Cache[state.PacketKey, struct{}]
	seq   uint16

	// head-in-flight bookkeeping. A RetryTimer may fire long after the
	// packet it was armed for is gone; every handler re-validates against
	// the current head before acting.
	inFlight    bool
	awaitingAck bool
	ackParent   state.NodeId

	// loop repair: forwarding pauses until loopUntil, and forwarded
	// packets carry the pull flag until the next successful ack.
	pull      bool
	loopUntil int64 // virtual nanoseconds

	collectGoal int
	collected   map[originSeq]struct{}
}

func NewForwardingEngine(env *state.Env, self state.NodeId, isRoot bool, collectGoal int,
	routes RouteProvider, links AckRecorder, sender FrameSender) *ForwardingEngine {
	fe := &ForwardingEngine{
		env:         env,
		self:        self,
		isRoot:      isRoot,
		routes:      routes,
		links:       links,
		sender:      sender,
		queue:       make([]queueEntry, env.Proto.QueueDepth),
		collectGoal: collectGoal,
		cache: ttlcache.New[state.PacketKey, struct{}](
			ttlcache.WithCapacity[state.PacketKey, struct{}](uint64(env.Proto.CacheSize)),
			ttlcache.WithDisableTouchOnHit[state.PacketKey, struct{}](),
		),
	}
	if isRoot {
		fe.collected = make(map[originSeq]struct{})
	}
	return fe
}

// Done reports the node's termination predicate: non-roots are always done;
// the root is done once it has collected its goal of distinct packets.
func (fe *ForwardingEngine) Done() bool {
	if !fe.isRoot {
		return true
	}
	return len(fe.collected) >= fe.collectGoal
}

// Collected returns how many distinct (origin, seqno) pairs reached the
// sink.
func (fe *ForwardingEngine) Collected() int { return len(fe.collected) }

func (fe *ForwardingEngine) QueueLen() int { return fe.count }

// IsCongested reports the node-local congestion signal: queue at or above
// half capacity.
func (fe *ForwardingEngine) IsCongested() bool {
	return fe.count*2 >= len(fe.queue)
}

// EnqueueLocal originates a data packet at this node. It is rejected on the
// root (the root only collects) and when the queue is full.
func (fe *ForwardingEngine) EnqueueLocal(payload int32) bool {
	if fe.isRoot {
		fe.env.Log.Warn("root asked to originate data, refusing")
		return false
	}
	if fe.count == len(fe.queue) {
		fe.env.Metrics.DataDropped.WithLabelValues("overflow").Inc()
		return false
	}
	pkt := state.DataPacket{
		Origin:  fe.self,
		Seqno:   fe.seq,
		Payload: payload,
	}
	fe.seq++
	fe.push(queueEntry{pkt: pkt, retries: fe.env.Proto.MaxRetries})
	fe.TryForward()
	return true
}

func (fe *ForwardingEngine) push(e queueEntry) {
	idx := (fe.head + fe.count) % len(fe.queue)
	fe.queue[idx] = e
	fe.count++
}

func (fe *ForwardingEngine) headEntry() *queueEntry {
	return &fe.queue[fe.head]
}

func (fe *ForwardingEngine) dequeueHead(remember bool) {
	if remember {
		fe.cache.Set(fe.headEntry().pkt.Key(), struct{}{}, ttlcache.NoTTL)
	}
	fe.queue[fe.head] = queueEntry{}
	fe.head = (fe.head + 1) % len(fe.queue)
	fe.count--
}

func (fe *ForwardingEngine) cached(key state.PacketKey) bool {
	return fe.cache.Has(key)
}

func (fe *ForwardingEngine) queued(key state.PacketKey) bool {
	for i := 0; i < fe.count; i++ {
		idx := (fe.head + i) % len(fe.queue)
		if fe.queue[idx].pkt.Key() == key {
			return true
		}
	}
	return false
}

// TryForward attempts to put the queue head on the air. It defers (and
// re-arms itself) while there is no route, the link layer is busy, or loop
// repair is pausing forwarding.
func (fe *ForwardingEngine) TryForward() {
	for {
		if fe.inFlight || fe.count == 0 {
			return
		}
		now := int64(fe.env.Sched.Now(fe.self))
		if now < fe.loopUntil {
			fe.env.Sched.Schedule(fe.self, fe.env.Proto.LoopRepairPause, state.ForwardDelayTimer{})
			return
		}
		if !fe.routes.HasRoute() {
			fe.env.Sched.Schedule(fe.self, fe.env.Proto.NoRoutePause, state.ForwardDelayTimer{})
			return
		}

		entry := fe.headEntry()
		key := entry.pkt.Key()
		if fe.cached(key) {
			// already sent at this hop depth; drop and go on to the next
			fe.env.Metrics.DataDuplicates.Inc()
			fe.dequeueHead(false)
			continue
		}

		entry.pkt.Etx = fe.routes.CurrentEtx()
		entry.pkt.Congested = fe.IsCongested()
		entry.pkt.Pull = fe.pull
		parent := fe.routes.Parent()

		pkt := entry.pkt
		if !fe.sender.Send(state.Frame{
			Type: state.FrameData,
			Src:  fe.self,
			Dst:  parent,
			Data: &pkt,
		}) {
			fe.env.Sched.Schedule(fe.self, fe.env.Proto.RetryPause, state.ForwardDelayTimer{})
			return
		}
		fe.inFlight = true
		fe.awaitingAck = false
		fe.ackParent = parent
		fe.env.Metrics.DataTx.Inc()
		return
	}
}

// OnSendDone is the link layer's completion signal for the in-flight data
// frame. A successful put-on-air arms the acknowledgment wait; a channel
// access failure consumes a retry without charging the link estimate.
func (fe *ForwardingEngine) OnSendDone(ok bool) {
	if !fe.inFlight || fe.awaitingAck || fe.count == 0 {
		return
	}
	if ok {
		fe.awaitingAck = true
		fe.env.Sched.Schedule(fe.self, fe.env.Proto.AckTimeout,
			state.RetryTimer{Key: fe.headEntry().pkt.Key()})
		return
	}
	fe.inFlight = false
	fe.failHead(false)
}

// HandleEvent processes the forwarding timers.
func (fe *ForwardingEngine) HandleEvent(ev state.Event) {
	switch e := ev.(type) {
	case state.ForwardDelayTimer:
		fe.TryForward()
	case state.RetryTimer:
		// the ack may have arrived, or the head may be a different packet
		// by now; only a still-matching in-flight head counts as a miss
		if !fe.inFlight || !fe.awaitingAck || fe.count == 0 ||
			fe.headEntry().pkt.Key() != e.Key {
			return
		}
		fe.inFlight = false
		fe.awaitingAck = false
		fe.failHead(true)
	case state.SendRequest:
		fe.EnqueueLocal(e.Payload)
	}
}

// failHead charges one retry against the head. chargeLink distinguishes a
// missed acknowledgment (which degrades the link estimate and may mean the
// parent link has gone bad) from a channel-access failure.
func (fe *ForwardingEngine) failHead(chargeLink bool) {
	if chargeLink {
		fe.links.RecordAck(fe.ackParent, false)
		fe.routes.Recompute()
	}
	entry := fe.headEntry()
	entry.retries--
	if entry.retries > 0 {
		fe.env.Sched.Schedule(fe.self, fe.env.Proto.RetryPause, state.ForwardDelayTimer{})
		return
	}
	// budget exhausted; the drop is silent by design, nothing upstream is
	// told beyond the disappearance itself
	fe.env.Metrics.DataDropped.WithLabelValues("retries").Inc()
	fe.dequeueHead(false)
	fe.TryForward()
}

// OnAck handles an acknowledgment frame from the parent.
func (fe *ForwardingEngine) OnAck(key state.PacketKey) {
	if !fe.inFlight || !fe.awaitingAck || fe.count == 0 ||
		fe.headEntry().pkt.Key() != key {
		return
	}
	fe.links.RecordAck(fe.ackParent, true)
	fe.dequeueHead(true)
	fe.inFlight = false
	fe.awaitingAck = false
	fe.pull = false
	fe.TryForward()
}

// OnReceive handles a data frame addressed to this node. It returns false
// when the packet is rejected (duplicate or queue overflow).
func (fe *ForwardingEngine) OnReceive(pkt *state.DataPacket) bool {
	p := *pkt
	p.THL++
	key := p.Key()
	if fe.cached(key) || fe.queued(key) {
		fe.env.Metrics.DataDuplicates.Inc()
		return false
	}

	if fe.isRoot {
		fe.collected[originSeq{Origin: p.Origin, Seqno: p.Seqno}] = struct{}{}
		fe.cache.Set(key, struct{}{}, ttlcache.NoTTL)
		fe.env.Metrics.DataDelivered.Inc()
		fe.env.Metrics.Collected.Set(float64(len(fe.collected)))
		fe.env.Log.Debug("collected", "origin", p.Origin, "seqno", p.Seqno, "thl", p.THL)
		return true
	}

	// a relayed packet whose cost is not above ours has been routed the
	// wrong way: a loop. Pull fresh topology and pause forwarding so the
	// tree can repair.
	if fe.routes.HasRoute() && p.Etx <= fe.routes.CurrentEtx() {
		fe.env.Metrics.LoopsDetected.Inc()
		fe.env.Log.Debug("forwarding loop detected",
			"origin", p.Origin, "etx", p.Etx, "own", fe.routes.CurrentEtx())
		fe.routes.ResetBeaconInterval()
		fe.pull = true
		fe.loopUntil = int64(fe.env.Sched.Now(fe.self)) + int64(fe.env.Proto.LoopRepairPause)
	}

	if fe.count == len(fe.queue) {
		fe.env.Metrics.DataDropped.WithLabelValues("overflow").Inc()
		return false
	}
	fe.push(queueEntry{pkt: p, retries: fe.env.Proto.MaxRetries})
	fe.TryForward()
	return true
}
