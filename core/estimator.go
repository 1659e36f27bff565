package core

import (
	"github.com/rayonsim/rayon/state"
)

// EntryState is the lifecycle of a neighbor table entry.
type EntryState int

const (
	EntryEmpty EntryState = iota
	// EntryInit entries are gathering their first beacon window; their
	// quality is not yet trustworthy and OneHopEtx reports INF for them.
	EntryInit
	// EntryMature entries have a smoothed quality and a usable ETX.
	EntryMature
)

// NeighborEntry tracks the measured one-hop cost of one neighbor, fed by
// beacon reception gaps and data acknowledgment outcomes.
type NeighborEntry struct {
	Neighbor state.NodeId
	State    EntryState
	// Pinned entries are exempt from quality-based eviction. The current
	// parent (or a directly heard root) is always the pinned entry.
	Pinned bool

	LastSeq       uint8
	BeaconsRcvd   uint16
	BeaconsMissed uint16
	// InQuality is the smoothed ingoing quality, 0..QualityMax.
	InQuality uint16
	// Etx is the smoothed one-hop ETX at EtxUnit scale, INF when the link
	// has dropped below the detectable floor.
	Etx uint16

	DataTotal uint16
	DataAcked uint16
}

// LinkTable is the view of the link estimator the routing engine consumes.
// It is an interface so routing unit tests can substitute a fixture.
type LinkTable interface {
	OneHopEtx(n state.NodeId) uint16
	Pin(n state.NodeId)
	Unpin(n state.NodeId)
	ClearDataCounters(n state.NodeId)
	ForceInsertPinned(n state.NodeId)
}

// LinkEstimator maintains the fixed-size neighbor table.
type LinkEstimator struct {
	env   *state.Env
	table []NeighborEntry

	// evicted is invoked whenever a neighbor leaves the table, so the
	// routing engine can drop its route entry.
	evicted func(state.NodeId)
}

func NewLinkEstimator(env *state.Env) *LinkEstimator {
	return &LinkEstimator{
		env:   env,
		table: make([]NeighborEntry, env.Proto.NeighborTableSize),
	}
}

func (le *LinkEstimator) OnEvicted(fn func(state.NodeId)) { le.evicted = fn }

// find returns the table index of n, or -1. Lookup is a linear scan over
// the fixed-size table.
func (le *LinkEstimator) find(n state.NodeId) int {
	for i := range le.table {
		if le.table[i].State != EntryEmpty && le.table[i].Neighbor == n {
			return i
		}
	}
	return -1
}

// OneHopEtx returns the smoothed one-hop ETX of n, or INF when n is
// unknown or its entry has not matured.
func (le *LinkEstimator) OneHopEtx(n state.NodeId) uint16 {
	idx := le.find(n)
	if idx == -1 || le.table[idx].State != EntryMature {
		return state.INF
	}
	return le.table[idx].Etx
}

// Pin protects n from eviction and clears every other pin, so the table
// never holds more than one pinned entry and a parent switch cannot leave
// the old parent's pin behind.
func (le *LinkEstimator) Pin(n state.NodeId) {
	for i := range le.table {
		le.table[i].Pinned = le.table[i].State != EntryEmpty && le.table[i].Neighbor == n
	}
}

func (le *LinkEstimator) Unpin(n state.NodeId) {
	if idx := le.find(n); idx != -1 {
		le.table[idx].Pinned = false
	}
}

// PinnedCount is used by invariant checks: a non-root node pins exactly its
// current parent, or nothing before a parent is ever found.
func (le *LinkEstimator) PinnedCount() int {
	count := 0
	for i := range le.table {
		if le.table[i].State != EntryEmpty && le.table[i].Pinned {
			count++
		}
	}
	return count
}

func (le *LinkEstimator) ClearDataCounters(n state.NodeId) {
	if idx := le.find(n); idx != -1 {
		le.table[idx].DataTotal = 0
		le.table[idx].DataAcked = 0
	}
}

func etxFromQuality(q uint16) uint16 {
	if q < state.QualityFloor {
		return state.INF
	}
	return uint16(uint32(state.QualityMax) * uint32(state.EtxUnit) / uint32(q))
}

func ewma(old, inst uint16) uint16 {
	v := (uint32(old)*state.EwmaOld + uint32(inst)) / state.EwmaDiv
	if v >= uint32(state.INF) {
		return state.INF
	}
	return uint16(v)
}

func initEntry(e *NeighborEntry, n state.NodeId, seq uint8) {
	*e = NeighborEntry{
		Neighbor:    n,
		State:       EntryInit,
		LastSeq:     seq,
		BeaconsRcvd: 1,
		Etx:         state.INF,
	}
}

// RecordBeacon accounts one received beacon from origin. It allocates an
// entry on first contact, evicting per policy when the table is full, and
// recomputes the smoothed quality once a full window has been observed.
// It reports false when the table is full and nothing could be evicted.
func (le *LinkEstimator) RecordBeacon(origin state.NodeId, seq uint8) bool {
	idx := le.find(origin)
	if idx == -1 {
		idx = le.allocate()
		if idx == -1 {
			return false
		}
		initEntry(&le.table[idx], origin, seq)
		return true
	}

	e := &le.table[idx]
	gap := seq - e.LastSeq // wraparound arithmetic
	if gap == 0 {
		return true // re-heard the same beacon, nothing new
	}
	missed := int(gap) - 1
	if missed > le.env.Proto.MaxSeqGap {
		// the neighbor went silent long enough that history is meaningless;
		// treat it as freshly discovered and let routing drop its claim
		initEntry(e, origin, seq)
		if le.evicted != nil {
			le.evicted(origin)
		}
		return true
	}

	e.LastSeq = seq
	e.BeaconsRcvd++
	e.BeaconsMissed += uint16(missed)
	if int(e.BeaconsRcvd+e.BeaconsMissed) >= le.env.Proto.BeaconWindow {
		le.recomputeQuality(e)
	}
	return true
}

func (le *LinkEstimator) recomputeQuality(e *NeighborEntry) {
	total := uint32(e.BeaconsRcvd) + uint32(e.BeaconsMissed)
	inst := uint16(uint32(state.QualityMax) * uint32(e.BeaconsRcvd) / total)
	if e.State == EntryInit {
		e.InQuality = inst
	} else {
		e.InQuality = ewma(e.InQuality, inst)
	}
	e.Etx = etxFromQuality(e.InQuality)
	e.State = EntryMature
	e.BeaconsRcvd = 0
	e.BeaconsMissed = 0
}

// allocate returns a free index, evicting when necessary: first the
// non-pinned mature entry with the worst ETX above the eviction threshold,
// then a uniformly random non-pinned immature entry, else -1.
func (le *LinkEstimator) allocate() int {
	for i := range le.table {
		if le.table[i].State == EntryEmpty {
			return i
		}
	}

	worst, worstEtx := -1, le.env.Proto.EvictEtx
	for i := range le.table {
		e := &le.table[i]
		if e.Pinned || e.State != EntryMature {
			continue
		}
		if e.Etx > worstEtx {
			worst, worstEtx = i, e.Etx
		}
	}
	if worst != -1 {
		le.evict(worst)
		return worst
	}

	candidates := make([]int, 0, len(le.table))
	for i := range le.table {
		if !le.table[i].Pinned && le.table[i].State != EntryMature {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	pick := candidates[le.env.Sched.RandUint32(uint32(len(candidates)))]
	le.evict(pick)
	return pick
}

func (le *LinkEstimator) evict(idx int) {
	gone := le.table[idx].Neighbor
	le.table[idx] = NeighborEntry{}
	if le.evicted != nil {
		le.evicted(gone)
	}
}

// ForceInsertPinned guarantees n has a table entry, used when a root's
// beacon is heard directly. The entry is pinned only while nothing else
// is: a current parent keeps its pin until routing actually selects the
// root, at which point Pin moves the single pin over.
func (le *LinkEstimator) ForceInsertPinned(n state.NodeId) {
	idx := le.find(n)
	if idx == -1 {
		idx = le.allocate()
		if idx == -1 {
			// all entries pinned-or-protected; should not happen with one
			// pin per node, give up rather than break the invariant
			return
		}
		initEntry(&le.table[idx], n, 0)
		le.table[idx].BeaconsRcvd = 0
	}
	if le.PinnedCount() == 0 {
		le.table[idx].Pinned = true
	}
}

// RecordAck accounts one data transmission to n and whether it was
// acknowledged. After a full window the sent/acked ratio folds into the
// smoothed ETX.
func (le *LinkEstimator) RecordAck(n state.NodeId, acked bool) {
	idx := le.find(n)
	if idx == -1 {
		return
	}
	e := &le.table[idx]
	e.DataTotal++
	if acked {
		e.DataAcked++
	}
	if int(e.DataTotal) < le.env.Proto.DataWindow {
		return
	}

	var inst uint16
	if e.DataAcked == 0 {
		// no acks at all: the sent count itself is the best cost estimate
		inst = uint16(min(uint32(e.DataTotal)*uint32(state.EtxUnit), uint32(state.INF)-1))
	} else {
		inst = uint16(uint32(e.DataTotal) * uint32(state.EtxUnit) / uint32(e.DataAcked))
	}
	if e.State == EntryMature && e.Etx != state.INF {
		e.Etx = ewma(e.Etx, inst)
	} else {
		e.Etx = inst
	}
	e.DataTotal = 0
	e.DataAcked = 0
}
