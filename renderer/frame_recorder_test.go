package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProgramRecordsFixedShape(t *testing.T) {
	_, _, ctx := newFakeContext(3)
	r := NewFrameRecorder(ctx)
	target := RenderTarget{Slot: 2, Handle: "fb2"}
	pl := Pipeline{Kind: PipelineGraphics, Handle: "pipe", Pass: "pass", Generation: 7}

	p, err := r.BuildProgram(target, pl, ctx.Draw)
	require.NoError(t, err)
	assert.Equal(t, Slot(2), p.Slot)
	assert.Equal(t, uint64(7), p.pipelineGen)
	assert.Equal(t, []string{
		"begin fb2 pass [0 0 1 1]",
		"bind-pipeline graphics pipe",
		"bind-vertex vbuf",
		"bind-index ibuf",
		"draw-indexed 6",
		"end",
	}, p.Commands.(*fakeCommands).ops)

	again, err := r.BuildProgram(target, pl, ctx.Draw)
	require.NoError(t, err)
	assert.Equal(t, p.Commands.(*fakeCommands).ops, again.Commands.(*fakeCommands).ops)
}

func TestBuildProgramRejectsComputePipeline(t *testing.T) {
	b, _, ctx := newFakeContext(3)
	_, err := NewFrameRecorder(ctx).BuildProgram(RenderTarget{}, Pipeline{Kind: PipelineCompute}, ctx.Draw)
	assert.ErrorIs(t, err, ErrPipelineKind)
	assert.Zero(t, b.recorded)
}

func TestBuildSetIsAllOrNothing(t *testing.T) {
	b, _, ctx := newFakeContext(4)
	r := NewFrameRecorder(ctx)
	targets := make([]RenderTarget, 4)
	for i := range targets {
		targets[i] = RenderTarget{Slot: Slot(i)}
	}
	pl := Pipeline{Kind: PipelineGraphics, Generation: 1}

	b.finishErrAt = 3
	set, err := r.BuildSet(targets, 1, pl, ctx.Draw)
	assert.ErrorIs(t, err, ErrDeviceLost)
	assert.Nil(t, set)
	assert.Equal(t, 2, b.freed, "programs recorded before the failure are freed")

	b.finishErrAt = 0
	set, err = r.BuildSet(targets, 1, pl, ctx.Draw)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.True(t, set.Current(1, 1))
	assert.False(t, set.Current(2, 1))
	for i := range targets {
		p, err := set.Program(Slot(i))
		require.NoError(t, err)
		assert.Equal(t, Slot(i), p.Slot)
	}
	_, err = set.Program(4)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)

	r.Free(set)
	assert.Equal(t, 6, b.freed)
	assert.Zero(t, set.Len())
	_, err = set.Program(0)
	assert.ErrorIs(t, err, ErrNoPrograms)
}

func TestBuildSetRejectsMisorderedTargets(t *testing.T) {
	_, _, ctx := newFakeContext(2)
	targets := []RenderTarget{{Slot: 1}, {Slot: 0}}
	_, err := NewFrameRecorder(ctx).BuildSet(targets, 1, Pipeline{}, ctx.Draw)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)

	_, err = NewFrameRecorder(ctx).BuildSet(nil, 1, Pipeline{}, ctx.Draw)
	assert.ErrorIs(t, err, ErrNoPrograms)
}
