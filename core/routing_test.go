package core

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rayonsim/rayon/state"
)

func newTestRouting(sched *testSched) (*RoutingEngine, *fakeLinks, *recSender) {
	links := newFakeLinks()
	sender := &recSender{ok: true}
	re := NewRoutingEngine(testEnv(sched), 5, false, links, sender)
	return re, links, sender
}

func TestOnBeacon_AdoptsDirectRoot(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[1] = 10

	// a root declares itself as parent at cost zero
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0})

	assert.Equal(t, state.NodeId(1), re.Parent())
	assert.Equal(t, uint16(10), re.CurrentEtx())
	assert.Equal(t, []state.NodeId{1}, links.forced)
	assert.True(t, links.pinned[1])
	assert.Equal(t, []state.NodeId{1}, links.cleared)
}

func TestOnBeacon_HysteresisHoldsParent(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[1] = 10
	links.etx[2] = 10
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0})

	// 2 offers total 15 against our 10; within the switch threshold
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 5})
	assert.Equal(t, state.NodeId(1), re.Parent())
}

func TestOnBeacon_SwitchesPastThreshold(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[1] = 30
	links.etx[2] = 5
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0})
	assert.Equal(t, state.NodeId(1), re.Parent())

	// 2 offers total 15 against our 30: 15 + threshold <= 30
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 10})
	assert.Equal(t, state.NodeId(2), re.Parent())
	assert.Equal(t, uint16(15), re.CurrentEtx())
	assert.False(t, links.pinned[1])
	assert.True(t, links.pinned[2])
}

func TestOnBeacon_DescendantNeverParent(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[2] = 10

	// 2 claims us as its parent; adopting it would close a loop
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 5, Etx: 20})
	assert.Equal(t, state.NoNode, re.Parent())
	assert.False(t, re.HasRoute())
}

func TestOnBeacon_CongestedCandidateSkipped(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[2] = 10

	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 10, Congested: true})
	assert.Equal(t, state.NoNode, re.Parent())
}

func TestOnBeacon_FleesCongestedParent(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[1] = 10
	links.etx[2] = 10
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 10})
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 5})
	assert.Equal(t, state.NodeId(1), re.Parent())

	// the parent reports congestion; 2's total 15 is under the parent's
	// declared 10 plus one hop, so it is a safe escape
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 10, Congested: true})
	assert.Equal(t, state.NodeId(2), re.Parent())
}

func TestOnBeacon_CongestionEscapeGuardsDepth(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[1] = 10
	links.etx[2] = 10
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 10})
	// 2 is likely deeper than the parent: total 31 >= 10 + one hop
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 21})

	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 10, Congested: true})
	assert.Equal(t, state.NodeId(1), re.Parent())
}

func TestOnBeacon_WeakLinkNotInserted(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[2] = 60 // above the one-hop admission cutoff

	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 10})
	assert.Equal(t, state.NoNode, re.Parent())
	assert.Empty(t, re.table)
}

func TestOnNeighborEvicted_ParentLossReroutes(t *testing.T) {
	re, links, _ := newTestRouting(&testSched{})
	links.etx[1] = 10
	links.etx[2] = 10
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0})
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 10})
	assert.Equal(t, state.NodeId(1), re.Parent())

	re.OnNeighborEvicted(1)
	assert.Equal(t, state.NodeId(2), re.Parent())
}

func TestBuildBeacon_RootAdvertisesSelf(t *testing.T) {
	links := newFakeLinks()
	sender := &recSender{ok: true}
	re := NewRoutingEngine(testEnv(&testSched{}), 5, true, links, sender)

	re.sendBeacon()
	b := sender.last().Beacon
	assert.Equal(t, state.NodeId(5), b.Parent)
	assert.Equal(t, uint16(0), b.Etx)
	assert.False(t, b.Pull)
}

// Drives a real link estimator and routing engine together: a parent that
// goes silent past the sequence-gap bound loses its table entry, the route
// and the pin, and the next beacon advertises parentless with pull set.
func TestLinkSilence_DropsRouteAndPulls(t *testing.T) {
	env := testEnv(&testSched{})
	links := NewLinkEstimator(env)
	sender := &recSender{ok: true}
	re := NewRoutingEngine(env, 5, false, links, sender)
	links.OnEvicted(re.OnNeighborEvicted)

	// hear a root directly for a full beacon window
	for s := uint8(0); s < 3; s++ {
		links.RecordBeacon(1, s)
		re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0, Seqno: s})
	}
	assert.Equal(t, state.NodeId(1), re.Parent())
	assert.Equal(t, 1, links.PinnedCount())

	links.RecordBeacon(1, 40)
	assert.False(t, re.HasRoute())
	assert.Equal(t, 0, links.PinnedCount())

	re.sendBeacon()
	b := sender.last().Beacon
	assert.Equal(t, state.NoNode, b.Parent)
	assert.True(t, b.Pull)
}

// Drives a real link estimator through adoption, a directly heard root and
// a congestion-driven switch: the single pin must cover the current parent
// the whole way through.
func TestPinDiscipline_OnePinFollowsParent(t *testing.T) {
	env := testEnv(&testSched{})
	links := NewLinkEstimator(env)
	sender := &recSender{ok: true}
	re := NewRoutingEngine(env, 5, false, links, sender)
	links.OnEvicted(re.OnNeighborEvicted)

	for s := uint8(0); s < 3; s++ {
		links.RecordBeacon(2, s)
		links.RecordBeacon(3, s)
	}
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 10})
	re.OnBeacon(&state.Beacon{Origin: 3, Parent: 1, Etx: 5})
	assert.Equal(t, state.NodeId(2), re.Parent())

	// a root heard over a still-immature link gets an entry but must not
	// steal the current parent's pin
	links.RecordBeacon(1, 0)
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0})
	assert.Equal(t, state.NodeId(2), re.Parent())
	assert.True(t, links.table[links.find(2)].Pinned)
	assert.Equal(t, 1, links.PinnedCount())

	// congestion pushes the route to 3; the pin moves with it
	re.OnBeacon(&state.Beacon{Origin: 2, Parent: 1, Etx: 10, Congested: true})
	assert.Equal(t, state.NodeId(3), re.Parent())
	assert.True(t, links.table[links.find(3)].Pinned)
	assert.Equal(t, 1, links.PinnedCount())
}

func TestOnSendDone_CountsLostBeacons(t *testing.T) {
	re, _, _ := newTestRouting(&testSched{})
	re.OnSendDone(true)
	re.OnSendDone(false)
	re.OnSendDone(false)
	assert.Equal(t, float64(2), testutil.ToFloat64(re.env.Metrics.BeaconsLost))
}

func TestBuildBeacon_NoRoutePulls(t *testing.T) {
	re, _, sender := newTestRouting(&testSched{})

	re.sendBeacon()
	b := sender.last().Beacon
	assert.Equal(t, state.NoNode, b.Parent)
	assert.Equal(t, state.INF, b.Etx)
	assert.True(t, b.Pull)
}

func TestBuildBeacon_SeqnoAdvances(t *testing.T) {
	re, _, sender := newTestRouting(&testSched{})
	re.sendBeacon()
	re.sendBeacon()
	assert.Equal(t, uint8(0), sender.frames[0].Beacon.Seqno)
	assert.Equal(t, uint8(1), sender.frames[1].Beacon.Seqno)
	assert.Equal(t, state.Broadcast, sender.frames[0].Dst)
}

func TestTrickle_IntervalDoublesToCap(t *testing.T) {
	sched := &testSched{}
	re, _, _ := newTestRouting(sched)
	re.ResetBeaconInterval()
	assert.Equal(t, 128*time.Millisecond, re.BeaconInterval())

	for i := 0; i < 20; i++ {
		re.HandleEvent(state.BeaconIntervalTimer{Gen: re.gen})
	}
	assert.Equal(t, 512*time.Second, re.BeaconInterval())
}

func TestTrickle_BeaconInSecondHalf(t *testing.T) {
	sched := &testSched{floats: []float64{0.0}}
	re, _, _ := newTestRouting(sched)
	re.ResetBeaconInterval()

	var at time.Duration
	for _, e := range sched.events {
		if _, ok := e.ev.(state.BeaconTimer); ok {
			at = e.at
		}
	}
	assert.Equal(t, 64*time.Millisecond, at)
}

func TestTrickle_StaleTimerIgnored(t *testing.T) {
	sched := &testSched{}
	re, _, sender := newTestRouting(sched)
	re.ResetBeaconInterval()
	stale := re.gen
	re.ResetBeaconInterval()

	re.HandleEvent(state.BeaconTimer{Gen: stale})
	assert.Empty(t, sender.frames)

	re.HandleEvent(state.BeaconTimer{Gen: re.gen})
	assert.Len(t, sender.frames, 1)
}

func TestOnBeacon_PullResetsInterval(t *testing.T) {
	sched := &testSched{}
	re, links, _ := newTestRouting(sched)
	links.etx[1] = 10
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0})
	re.ResetBeaconInterval()

	for i := 0; i < 4; i++ {
		re.HandleEvent(state.BeaconIntervalTimer{Gen: re.gen})
	}
	grown := re.BeaconInterval()
	re.OnBeacon(&state.Beacon{Origin: 1, Parent: 1, Etx: 0, Pull: true})
	assert.Less(t, re.BeaconInterval(), grown)
	assert.Equal(t, 128*time.Millisecond, re.BeaconInterval())
}
