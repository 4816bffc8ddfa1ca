package renderer

import "time"

// The interfaces in this file are the collaborators the presentation engine drives. The Vulkan
// implementation lives in package common, tests use an in-memory fake.

// Signal is a host-waitable completion marker bound to exactly one submission. Once signalled it
// stays signalled.
type Signal interface {
	// Wait blocks until the signal fires. It returns ErrWaitTimeout if timeout elapses first and
	// ErrDeviceLost if the device died while waiting.
	Wait(timeout time.Duration) error
	// Signaled polls without blocking.
	Signaled() (bool, error)
	// Release hands the primitive back to the backend. Only called once the signal is known to
	// have fired.
	Release()
}

// Semaphore is a GPU-side wait primitive produced by image acquisition and consumed by the
// submission that renders into the acquired image.
type Semaphore interface{}

// Swapchain is the backend's presentable image ring.
type Swapchain interface {
	Images() int
	Format() Format
	Extent() Extent
	CompositeAlpha() CompositeAlpha
	// Acquire returns the index of the next writable image and the semaphore that fires once the
	// presentation engine released it. Staleness is reported as ErrOutOfDate or ErrSuboptimal.
	Acquire(timeout time.Duration) (Slot, Semaphore, error)
	Destroy()
}

// Surface supplies the current drawable extent and window notifications.
type Surface interface {
	Extent() Extent
	// PollEvent returns the next pending event without blocking, ok is false if none is queued.
	PollEvent() (ev Event, ok bool)
	// WaitEvent blocks until an event arrives. Used while the surface has no area.
	WaitEvent() (ev Event, ok bool)
}

// Submission describes one queue submission of a frame program.
type Submission struct {
	Program FrameProgram
	Ring    Swapchain
	Slot    Slot
	// Acquire fires once the slot's image may be written.
	Acquire Semaphore
	// Previous is the completion signal of the previous frame, or Immediate.
	Previous Signal
}

// CommandEncoder records one command sequence.
type CommandEncoder interface {
	BeginRenderPass(target RenderTarget, pass any, clear ClearColor)
	BindPipeline(kind PipelineKind, pipeline any)
	BindVertexBuffer(buffer any)
	BindIndexBuffer(buffer any)
	DrawIndexed(indexCount uint32)
	EndRenderPass()
	// Finish closes the recording and returns the immutable command handle.
	Finish() (any, error)
}

// Device is the device/queue handle: ring construction, command recording, submission and
// presentation.
type Device interface {
	// CreateSwapchain creates a ring for surface at extent. old, when non-nil, is the ring being
	// replaced and is handed to the driver so format and surface can be reused. The caller still
	// destroys old.
	CreateSwapchain(surface Surface, extent Extent, old Swapchain) (Swapchain, error)
	CreateRenderTargets(ring Swapchain, pipeline Pipeline) ([]RenderTarget, error)
	DestroyRenderTargets(targets []RenderTarget)
	NewEncoder(slot Slot) (CommandEncoder, error)
	FreeCommands(commands any)
	Submit(s Submission) (Signal, error)
	// Present queues slot of ring for presentation. Staleness is reported as ErrOutOfDate or
	// ErrSuboptimal, anything else is fatal.
	Present(ring Swapchain, slot Slot) error
	WaitIdle() error
}

// PipelineBuilder turns compiled shader modules into a pipeline for a given ring format and
// viewport extent.
type PipelineBuilder interface {
	Build(kind PipelineKind, format Format, extent Extent, shaders []ShaderModule) (Pipeline, error)
	Destroy(p Pipeline)
}

// ShaderCompiler loads shader source for one stage. It keeps no state the engine relies on.
type ShaderCompiler interface {
	Compile(source string, stage Stage) (ShaderModule, error)
	Destroy(m ShaderModule)
}

type immediateSignal struct{}

func (immediateSignal) Wait(time.Duration) error { return nil }
func (immediateSignal) Signaled() (bool, error)  { return true, nil }
func (immediateSignal) Release()                 {}
func (immediateSignal) String() string           { return "immediate" }

// Immediate is the already satisfied signal used to chain the first frame after startup or
// recreation.
var Immediate Signal = immediateSignal{}
