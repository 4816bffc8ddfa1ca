package renderer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionTrackerEmptySlots(t *testing.T) {
	tr := NewCompletionTracker(3)
	assert.Equal(t, 3, tr.Len())
	assert.Zero(t, tr.Pending())
	assert.NoError(t, tr.WaitIfPending(2, time.Second))
	assert.Equal(t, Immediate, tr.Chain(0))
	assert.Equal(t, Immediate, tr.Chain(7), "out of range previous slot chains to immediate")
	assert.ErrorIs(t, tr.WaitIfPending(3, time.Second), ErrSlotOutOfRange)
	assert.ErrorIs(t, tr.RecordSubmission(3, Immediate), ErrSlotOutOfRange)
}

func TestCompletionTrackerWaitsOnLatestSubmission(t *testing.T) {
	b := &fakeBackend{}
	tr := NewCompletionTracker(2)
	first := &fakeSignal{b: b, id: 1, slot: 1}
	second := &fakeSignal{b: b, id: 2, slot: 1}

	require.NoError(t, tr.RecordSubmission(1, first))
	assert.Equal(t, first, tr.Chain(1))
	require.NoError(t, tr.WaitIfPending(1, time.Second))
	assert.True(t, first.fired)

	require.NoError(t, tr.RecordSubmission(1, second))
	assert.True(t, first.released, "fired superseded signal is released")
	assert.Equal(t, second, tr.Entry(1))
	assert.False(t, second.fired, "recording never waits")
	assert.Equal(t, 1, tr.Pending())
}

func TestCompletionTrackerKeepsUnfiredSupersededSignals(t *testing.T) {
	b := &fakeBackend{}
	tr := NewCompletionTracker(1)
	first := &fakeSignal{b: b, id: 1}
	second := &fakeSignal{b: b, id: 2}

	require.NoError(t, tr.RecordSubmission(0, first))
	require.NoError(t, tr.RecordSubmission(0, second))
	assert.False(t, first.released)

	require.NoError(t, tr.Drain(time.Second))
	assert.True(t, first.fired)
	assert.True(t, first.released)
	assert.True(t, second.released)
	assert.Zero(t, tr.Pending())
}

func TestCompletionTrackerDrainWaitsAll(t *testing.T) {
	b := &fakeBackend{}
	tr := NewCompletionTracker(4)
	var sigs []*fakeSignal
	for _, slot := range []Slot{0, 2, 3} {
		sig := &fakeSignal{b: b, id: int(slot) + 1, slot: slot}
		sigs = append(sigs, sig)
		require.NoError(t, tr.RecordSubmission(slot, sig))
	}

	require.NoError(t, tr.Drain(time.Second))
	for _, sig := range sigs {
		assert.True(t, sig.fired)
		assert.True(t, sig.released)
	}
	assert.Zero(t, tr.Pending())
	assert.Equal(t, 3, b.count("wait"))
	assert.Nil(t, tr.Entry(2))
}

func TestCompletionTrackerDrainTimeout(t *testing.T) {
	b := &fakeBackend{waitErr: ErrWaitTimeout}
	tr := NewCompletionTracker(2)
	sig := &fakeSignal{b: b, id: 1}
	require.NoError(t, tr.RecordSubmission(0, sig))

	err := tr.Drain(time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, 1, tr.Pending(), "failed entries stay for a retry")
	assert.False(t, sig.released)
	assert.ErrorIs(t, tr.Reset(3), ErrSlotCountChanged)

	b.waitErr = nil
	require.NoError(t, tr.Drain(time.Millisecond))
	require.NoError(t, tr.Reset(3))
	assert.Equal(t, 3, tr.Len())
}
