package core

import (
	"log/slog"
	"sort"
	"time"

	"github.com/rayonsim/rayon/state"
)

// scheduled is one captured Schedule call.
type scheduled struct {
	at   time.Duration
	seq  int
	node state.NodeId
	ev   state.Event
}

// testSched records every scheduled event and plays back scripted random
// numbers, so module behavior is fully deterministic under test.
type testSched struct {
	now    time.Duration
	seq    int
	events []scheduled
	uints  []uint32
	floats []float64
}

func (s *testSched) Schedule(node state.NodeId, delay time.Duration, ev state.Event) {
	s.events = append(s.events, scheduled{at: s.now + delay, seq: s.seq, node: node, ev: ev})
	s.seq++
}

func (s *testSched) Now(state.NodeId) time.Duration { return s.now }

func (s *testSched) RandUint32(n uint32) uint32 {
	if len(s.uints) == 0 {
		return 0
	}
	v := s.uints[0]
	s.uints = s.uints[1:]
	if n > 0 {
		v %= n
	}
	return v
}

func (s *testSched) RandFloat64() float64 {
	if len(s.floats) == 0 {
		return 0.5
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

// next pops the earliest pending event, advancing the clock to it.
func (s *testSched) next() (state.NodeId, state.Event, bool) {
	if len(s.events) == 0 {
		return state.NoNode, nil, false
	}
	sort.SliceStable(s.events, func(i, j int) bool {
		if s.events[i].at != s.events[j].at {
			return s.events[i].at < s.events[j].at
		}
		return s.events[i].seq < s.events[j].seq
	})
	e := s.events[0]
	s.events = s.events[1:]
	s.now = e.at
	return e.node, e.ev, true
}

func (s *testSched) pendingOfType(match func(state.Event) bool) int {
	n := 0
	for _, e := range s.events {
		if match(e.ev) {
			n++
		}
	}
	return n
}

func testEnv(sched state.Scheduler) *state.Env {
	return &state.Env{
		Proto:   state.DefaultProtocol(),
		Sched:   sched,
		Log:     slog.New(slog.DiscardHandler),
		Metrics: state.NewTestMetrics(),
	}
}

// fakeLinks is a scriptable LinkTable that records pin traffic.
type fakeLinks struct {
	etx     map[state.NodeId]uint16
	pinned  map[state.NodeId]bool
	cleared []state.NodeId
	forced  []state.NodeId
	acks    []bool
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{
		etx:    make(map[state.NodeId]uint16),
		pinned: make(map[state.NodeId]bool),
	}
}

func (f *fakeLinks) OneHopEtx(n state.NodeId) uint16 {
	if v, ok := f.etx[n]; ok {
		return v
	}
	return state.INF
}

// Pin mirrors the estimator's exclusive pin: one pinned neighbor at most.
func (f *fakeLinks) Pin(n state.NodeId) {
	clear(f.pinned)
	f.pinned[n] = true
}

func (f *fakeLinks) Unpin(n state.NodeId) { delete(f.pinned, n) }

func (f *fakeLinks) ClearDataCounters(n state.NodeId) { f.cleared = append(f.cleared, n) }

func (f *fakeLinks) ForceInsertPinned(n state.NodeId) {
	f.forced = append(f.forced, n)
	if len(f.pinned) == 0 {
		f.pinned[n] = true
	}
}

func (f *fakeLinks) RecordAck(n state.NodeId, acked bool) { f.acks = append(f.acks, acked) }

// recSender captures outgoing frames; ok scripts Send's return value.
type recSender struct {
	frames []state.Frame
	ok     bool
}

func (r *recSender) Send(f state.Frame) bool {
	if !r.ok {
		return false
	}
	r.frames = append(r.frames, f)
	return true
}

func (r *recSender) last() state.Frame { return r.frames[len(r.frames)-1] }

// fakeRoutes is a scriptable RouteProvider for forwarding tests.
type fakeRoutes struct {
	parent     state.NodeId
	etx        uint16
	recomputes int
	resets     int
}

func (f *fakeRoutes) HasRoute() bool       { return f.parent != state.NoNode }
func (f *fakeRoutes) Parent() state.NodeId { return f.parent }
func (f *fakeRoutes) CurrentEtx() uint16   { return f.etx }
func (f *fakeRoutes) Recompute()           { f.recomputes++ }
func (f *fakeRoutes) ResetBeaconInterval() { f.resets++ }
