package sim

import (
	"container/heap"
	"math/rand/v2"
	"time"

	"github.com/rayonsim/rayon/state"
)

type queued struct {
	at   time.Duration
	seq  uint64
	node state.NodeId
	ev   state.Event
}

type eventHeap []queued

func (h eventHeap) Len() int { return len(h) }

// Less orders by virtual time, breaking ties by insertion order so reruns
// with the same seed replay identically.
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler is the single-threaded discrete-event core. One virtual clock
// is shared by all nodes; time only moves when an event is popped.
type Scheduler struct {
	heap eventHeap
	now  time.Duration
	seq  uint64
	rng  *rand.Rand
}

func NewScheduler(seed uint64) *Scheduler {
	return &Scheduler{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Scheduler) Schedule(node state.NodeId, delay time.Duration, ev state.Event) {
	if delay < 0 {
		delay = 0
	}
	heap.Push(&s.heap, queued{at: s.now + delay, seq: s.seq, node: node, ev: ev})
	s.seq++
}

func (s *Scheduler) Now(state.NodeId) time.Duration { return s.now }

func (s *Scheduler) Pending() int { return s.heap.Len() }

// Next pops the earliest event and advances the clock to it.
func (s *Scheduler) Next() (state.NodeId, state.Event, bool) {
	if s.heap.Len() == 0 {
		return state.NoNode, nil, false
	}
	item := heap.Pop(&s.heap).(queued)
	s.now = item.at
	return item.node, item.ev, true
}

func (s *Scheduler) RandUint32(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return s.rng.Uint32N(n)
}

func (s *Scheduler) RandFloat64() float64 { return s.rng.Float64() }
