package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rayonsim/rayon/state"
)

func TestScheduler_TimeOrder(t *testing.T) {
	s := NewScheduler(1)
	s.Schedule(1, 30*time.Millisecond, state.ForwardDelayTimer{})
	s.Schedule(2, 10*time.Millisecond, state.ForwardDelayTimer{})
	s.Schedule(3, 20*time.Millisecond, state.ForwardDelayTimer{})

	var order []state.NodeId
	for {
		node, _, ok := s.Next()
		if !ok {
			break
		}
		order = append(order, node)
	}
	assert.Equal(t, []state.NodeId{2, 3, 1}, order)
}

func TestScheduler_TiesInInsertionOrder(t *testing.T) {
	s := NewScheduler(1)
	for i := 0; i < 10; i++ {
		s.Schedule(state.NodeId(i), time.Millisecond, state.ForwardDelayTimer{})
	}
	for i := 0; i < 10; i++ {
		node, _, ok := s.Next()
		assert.True(t, ok)
		assert.Equal(t, state.NodeId(i), node)
	}
}

func TestScheduler_ClockAdvancesToEvent(t *testing.T) {
	s := NewScheduler(1)
	s.Schedule(1, 50*time.Millisecond, state.ForwardDelayTimer{})
	assert.Equal(t, time.Duration(0), s.Now(1))

	_, _, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, s.Now(1))
}

func TestScheduler_RelativeDelaysCompound(t *testing.T) {
	s := NewScheduler(1)
	s.Schedule(1, 10*time.Millisecond, state.ForwardDelayTimer{})
	s.Next()
	s.Schedule(1, 10*time.Millisecond, state.ForwardDelayTimer{})
	s.Next()
	assert.Equal(t, 20*time.Millisecond, s.Now(1))
}

func TestScheduler_SeededRandRepeats(t *testing.T) {
	a := NewScheduler(7)
	b := NewScheduler(7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.RandUint32(1000), b.RandUint32(1000))
		assert.Equal(t, a.RandFloat64(), b.RandFloat64())
	}
}

func TestScheduler_EmptyQueue(t *testing.T) {
	s := NewScheduler(1)
	_, _, ok := s.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Pending())
}
