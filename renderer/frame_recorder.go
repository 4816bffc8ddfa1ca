package renderer

import (
	"fmt"
)

// FrameProgram is the immutable command sequence recorded for one ring slot.
type FrameProgram struct {
	Slot     Slot
	Commands any

	pipelineGen uint64
	targetGen   uint64
}

// ProgramSet is the full set of frame programs, exactly one per ring slot, all built from the same
// pipeline and render-target set. A nil *ProgramSet means no programs exist.
type ProgramSet struct {
	programs    []FrameProgram
	pipelineGen uint64
	targetGen   uint64
}

func (s *ProgramSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.programs)
}

// Program returns the program recorded for slot.
func (s *ProgramSet) Program(slot Slot) (FrameProgram, error) {
	if s == nil || len(s.programs) == 0 {
		return FrameProgram{}, ErrNoPrograms
	}
	if int(slot) >= len(s.programs) {
		return FrameProgram{}, fmt.Errorf("program for slot %d of %d: %w", slot, len(s.programs), ErrSlotOutOfRange)
	}
	return s.programs[slot], nil
}

// Current reports whether the set was built from the given pipeline and render-target generations.
func (s *ProgramSet) Current(pipelineGen, targetGen uint64) bool {
	return s != nil && s.pipelineGen == pipelineGen && s.targetGen == targetGen
}

// FrameRecorder records frame programs with the encoders handed out by the device.
type FrameRecorder struct {
	ctx *Context
}

func NewFrameRecorder(ctx *Context) *FrameRecorder {
	return &FrameRecorder{ctx: ctx}
}

// BuildProgram records the fixed command shape for one slot: begin the render target with the
// clear colour, bind pipeline, bind vertex and index buffers, one indexed draw over every index,
// end the render target.
func (r *FrameRecorder) BuildProgram(target RenderTarget, pipeline Pipeline, draw DrawData) (FrameProgram, error) {
	if pipeline.Kind != PipelineGraphics {
		return FrameProgram{}, fmt.Errorf("build program for slot %d with %v pipeline: %w", target.Slot, pipeline.Kind, ErrPipelineKind)
	}
	enc, err := r.ctx.Device.NewEncoder(target.Slot)
	if err != nil {
		return FrameProgram{}, fmt.Errorf("build program for slot %d: %w", target.Slot, err)
	}
	enc.BeginRenderPass(target, pipeline.Pass, r.ctx.Options.ClearColor)
	enc.BindPipeline(pipeline.Kind, pipeline.Handle)
	enc.BindVertexBuffer(draw.Vertices)
	enc.BindIndexBuffer(draw.Indices)
	enc.DrawIndexed(draw.IndexCount)
	enc.EndRenderPass()
	cmds, err := enc.Finish()
	if err != nil {
		return FrameProgram{}, fmt.Errorf("build program for slot %d: %w", target.Slot, err)
	}
	return FrameProgram{
		Slot:        target.Slot,
		Commands:    cmds,
		pipelineGen: pipeline.Generation,
	}, nil
}

// BuildSet records a program for every target. Either all of them are built or none: on failure
// the programs recorded so far are freed and no set is returned.
func (r *FrameRecorder) BuildSet(targets []RenderTarget, targetGen uint64, pipeline Pipeline, draw DrawData) (*ProgramSet, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("build program set: %w", ErrNoPrograms)
	}
	set := &ProgramSet{
		programs:    make([]FrameProgram, 0, len(targets)),
		pipelineGen: pipeline.Generation,
		targetGen:   targetGen,
	}
	for i, target := range targets {
		if target.Slot != Slot(i) {
			r.Free(set)
			return nil, fmt.Errorf("build program set: target %d is for slot %d: %w", i, target.Slot, ErrSlotOutOfRange)
		}
		p, err := r.BuildProgram(target, pipeline, draw)
		if err != nil {
			r.Free(set)
			return nil, err
		}
		p.targetGen = targetGen
		set.programs = append(set.programs, p)
	}
	return set, nil
}

// Free returns the recorded commands to the device. The caller must know none of them is still
// executing.
func (r *FrameRecorder) Free(set *ProgramSet) {
	if set == nil {
		return
	}
	for _, p := range set.programs {
		r.ctx.Device.FreeCommands(p.Commands)
	}
	set.programs = nil
}
