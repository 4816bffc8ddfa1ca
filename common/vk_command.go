package common

import (
	"errors"
	"fmt"

	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
)

// Encoder records one frame program into a primary command buffer. Handle type mismatches are collected and
// reported by Finish, mirroring how Vulkan itself only reports recording problems at vk.EndCommandBuffer. After the
// first failure every later call records nothing.
type Encoder struct {
	dc  *Device
	cb  vk.CommandBuffer
	err error
}

// NewEncoder allocates a command buffer from the device's pool and starts recording. The buffer is meant to be
// submitted many times, once per presentation of its slot.
func (dc *Device) NewEncoder(slot renderer.Slot) (renderer.CommandEncoder, error) {
	buffers, err := VKAllocateCommandBuffersPrimary(dc.D, dc.CmdPool, 1)
	if err != nil {
		return nil, fmt.Errorf("allocate command buffer for slot %d: %w", slot, err)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType:            vk.StructureTypeCommandBufferBeginInfo,
		PNext:            nil,
		Flags:            0,
		PInheritanceInfo: nil,
	}
	if err := vk.Error(vk.BeginCommandBuffer(buffers[0], &beginInfo)); err != nil {
		vk.FreeCommandBuffers(dc.D, dc.CmdPool, 1, buffers)
		return nil, fmt.Errorf("begin command buffer for slot %d: %w", slot, err)
	}
	return &Encoder{dc: dc, cb: buffers[0]}, nil
}

func (dc *Device) FreeCommands(commands any) {
	if cb, ok := commands.(vk.CommandBuffer); ok {
		vk.FreeCommandBuffers(dc.D, dc.CmdPool, 1, []vk.CommandBuffer{cb})
	}
}

func (e *Encoder) fail(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf(format, args...)
	}
}

func (e *Encoder) BeginRenderPass(target renderer.RenderTarget, pass any, clear renderer.ClearColor) {
	if e.err != nil {
		return
	}
	fb, ok := target.Handle.(vk.Framebuffer)
	if !ok {
		e.fail("begin render pass: render target %T is not a framebuffer", target.Handle)
		return
	}
	renderPass, ok := pass.(vk.RenderPass)
	if !ok {
		e.fail("begin render pass: %T is not a render pass", pass)
		return
	}
	clearValues := []vk.ClearValue{
		vk.NewClearValue(clear[:]),
	}
	renderPassInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		PNext:       nil,
		RenderPass:  renderPass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: target.Extent.Width, Height: target.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(e.cb, &renderPassInfo, vk.SubpassContentsInline)
}

func (e *Encoder) BindPipeline(kind renderer.PipelineKind, pipeline any) {
	if e.err != nil {
		return
	}
	pl, ok := pipeline.(vk.Pipeline)
	if !ok {
		e.fail("bind pipeline: %T is not a pipeline", pipeline)
		return
	}
	bindPoint := vk.PipelineBindPointGraphics
	if kind == renderer.PipelineCompute {
		bindPoint = vk.PipelineBindPointCompute
	}
	vk.CmdBindPipeline(e.cb, bindPoint, pl)
}

func (e *Encoder) BindVertexBuffer(buffer any) {
	if e.err != nil {
		return
	}
	buf, err := asBuffer(buffer)
	if err != nil {
		e.fail("bind vertex buffer: %w", err)
		return
	}
	vk.CmdBindVertexBuffers(e.cb, 0, 1, []vk.Buffer{buf}, []vk.DeviceSize{0})
}

func (e *Encoder) BindIndexBuffer(buffer any) {
	if e.err != nil {
		return
	}
	buf, err := asBuffer(buffer)
	if err != nil {
		e.fail("bind index buffer: %w", err)
		return
	}
	vk.CmdBindIndexBuffer(e.cb, buf, 0, vk.IndexTypeUint32)
}

func (e *Encoder) DrawIndexed(indexCount uint32) {
	if e.err != nil {
		return
	}
	vk.CmdDrawIndexed(e.cb, indexCount, 1, 0, 0, 0)
}

func (e *Encoder) EndRenderPass() {
	if e.err != nil {
		return
	}
	vk.CmdEndRenderPass(e.cb)
}

// Finish ends the recording. On failure the command buffer is freed and nothing is returned.
func (e *Encoder) Finish() (any, error) {
	endErr := vk.Error(vk.EndCommandBuffer(e.cb))
	if err := errors.Join(e.err, endErr); err != nil {
		e.dc.FreeCommands(e.cb)
		return nil, fmt.Errorf("record commands: %w", err)
	}
	return e.cb, nil
}

func asBuffer(buffer any) (vk.Buffer, error) {
	switch b := buffer.(type) {
	case vk.Buffer:
		return b, nil
	case *Buffer:
		return b.Handle, nil
	}
	return vk.NullBuffer, fmt.Errorf("%T is not a buffer", buffer)
}

// Submit queues a frame program on the graphics queue. It waits for the acquisition semaphore at the colour
// output stage, signals the slot's render finished semaphore for presentation and a pooled fence for the host.
//
// The previous frame's signal needs no explicit wait: everything goes to the same queue, and submissions on one
// queue start in order, so the previous frame is already ahead of this one.
func (dc *Device) Submit(s renderer.Submission) (renderer.Signal, error) {
	sc, ok := s.Ring.(*SwapChain)
	if !ok {
		return nil, fmt.Errorf("submit: foreign ring %T", s.Ring)
	}
	cb, ok := s.Program.Commands.(vk.CommandBuffer)
	if !ok {
		return nil, fmt.Errorf("submit: program commands %T", s.Program.Commands)
	}
	acquired, ok := s.Acquire.(vk.Semaphore)
	if !ok {
		return nil, fmt.Errorf("submit: acquire semaphore %T", s.Acquire)
	}
	if int(s.Slot) >= len(sc.renderDone) {
		return nil, fmt.Errorf("submit slot %d: %w", s.Slot, renderer.ErrSlotOutOfRange)
	}

	fence, err := dc.fences.Get()
	if err != nil {
		return nil, err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		PNext:              nil,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{acquired},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{sc.renderDone[s.Slot]},
	}
	if err := ResultError(vk.QueueSubmit(dc.GraphicsQ, 1, []vk.SubmitInfo{submitInfo}, fence)); err != nil {
		_ = dc.fences.Put(fence)
		return nil, fmt.Errorf("submit slot %d: %w", s.Slot, err)
	}
	return &fenceSignal{pool: dc.fences, fence: fence}, nil
}

// Present queues slot of ring on the present queue once its frame program signalled render finished.
func (dc *Device) Present(ring renderer.Swapchain, slot renderer.Slot) error {
	sc, ok := ring.(*SwapChain)
	if !ok {
		return fmt.Errorf("present: foreign ring %T", ring)
	}
	if int(slot) >= len(sc.renderDone) {
		return fmt.Errorf("present slot %d: %w", slot, renderer.ErrSlotOutOfRange)
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		PNext:              nil,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sc.renderDone[slot]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{uint32(slot)},
		PResults:           nil,
	}
	return ResultError(vk.QueuePresent(dc.PresentQ, &presentInfo))
}
