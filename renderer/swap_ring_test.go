package renderer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingManagerRejectsZeroExtent(t *testing.T) {
	b, _, ctx := newFakeContext(3)
	m := NewRingManager(ctx)

	for _, ext := range []Extent{{0, 0}, {640, 0}, {0, 480}} {
		_, err := m.Create(ext)
		assert.ErrorIs(t, err, ErrZeroExtent, ext.String())
	}
	r, err := m.Create(Extent{640, 480})
	require.NoError(t, err)
	_, err = m.Recreate(r, Extent{0, 480})
	assert.ErrorIs(t, err, ErrZeroExtent)
	assert.False(t, b.rings[0].destroyed, "old ring survives a rejected recreation")
	assert.Len(t, b.rings, 1)
}

func TestRingManagerRecreateIsIdempotentOnExtent(t *testing.T) {
	b, _, ctx := newFakeContext(3)
	m := NewRingManager(ctx)
	ext := Extent{1280, 720}

	r0, err := m.Create(Extent{800, 600})
	require.NoError(t, err)
	r1, err := m.Recreate(r0, ext)
	require.NoError(t, err)
	r2, err := m.Recreate(r1, ext)
	require.NoError(t, err)

	assert.Equal(t, r1.Images, r2.Images)
	assert.Equal(t, r1.Format, r2.Format)
	assert.Equal(t, ext, r2.Extent)
	assert.Equal(t, uint64(3), r2.Generation)
	assert.True(t, b.rings[0].destroyed)
	assert.True(t, b.rings[1].destroyed)
	assert.Same(t, b.rings[1], b.rings[2].old, "old ring is handed to the driver")
}

func TestRingManagerRejectsSingleImageRing(t *testing.T) {
	b, _, ctx := newFakeContext(1)
	_, err := NewRingManager(ctx).Create(Extent{640, 480})
	assert.ErrorIs(t, err, ErrNoCompatibleSurface)
	assert.True(t, b.rings[0].destroyed)
}

func TestRingManagerAcquireNext(t *testing.T) {
	tests := []struct {
		name       string
		errs       []error
		slots      []Slot
		stale      bool
		suboptimal bool
		wantErr    error
	}{
		{name: "ok"},
		{name: "out of date", errs: []error{ErrOutOfDate}, stale: true},
		{name: "suboptimal", errs: []error{ErrSuboptimal}, stale: true, suboptimal: true},
		{name: "wrapped out of date", errs: []error{fmt.Errorf("acquire next image: %w", ErrOutOfDate)}, stale: true},
		{name: "device lost", errs: []error{ErrDeviceLost}, wantErr: ErrDeviceLost},
		{name: "slot out of range", slots: []Slot{4}, wantErr: ErrSlotOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, ctx := newFakeContext(3)
			m := NewRingManager(ctx)
			r, err := m.Create(Extent{640, 480})
			require.NoError(t, err)
			b.acquireErrs = tt.errs
			b.acquireSlots = tt.slots

			acq, err := m.AcquireNext(r, time.Second)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.stale, acq.Stale)
			assert.Equal(t, tt.suboptimal, acq.Suboptimal)
			if !tt.stale {
				assert.Equal(t, Slot(0), acq.Slot)
				assert.Equal(t, "ring1/sem0", acq.Wait)
			}
		})
	}
}
