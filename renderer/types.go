package renderer

import (
	"fmt"
	"strings"
)

// Extent is a surface or image size in pixels. Both values map 1:1 onto a native 2D extent of
// 32-bit unsigned integers.
type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether the extent has no area, e.g. for a minimized window. Swap rings are
// never created against such an extent.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Slot indexes one image of a SwapRing together with everything recorded for it. It is the 32-bit
// image index handed out by the presentation engine.
type Slot uint32

// Format is the backend pixel format code of the ring images.
type Format uint32

// CompositeAlpha is the backend composite alpha mode the ring was created with.
type CompositeAlpha uint32

// ClearColor is the fixed RGBA value every frame program clears its render target with.
type ClearColor [4]float32

// Stage tags a shader module with the pipeline stage it is compiled for.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ParseStage resolves the textual stage names used in configuration and shader file tags.
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vertex", "vert", "vs":
		return StageVertex, nil
	case "fragment", "frag", "fs":
		return StageFragment, nil
	case "compute", "comp", "cs":
		return StageCompute, nil
	}
	return 0, fmt.Errorf("invalid shader stage %q", name)
}

// ShaderModule is a compiled shader loaded onto the device.
type ShaderModule struct {
	Stage      Stage
	EntryPoint string
	Handle     any
}

// PipelineKind selects how a Pipeline is bound when commands are recorded.
type PipelineKind int

const (
	PipelineGraphics PipelineKind = iota
	PipelineCompute
)

func (k PipelineKind) String() string {
	if k == PipelineCompute {
		return "compute"
	}
	return "graphics"
}

// Pipeline is the tagged pipeline variant. Handle and Layout are opaque backend objects, Pass is
// the render pass a graphics pipeline was built against. Generation is stamped by the presenter
// each time it installs a new pipeline, frame programs remember which generation they were built
// from.
type Pipeline struct {
	Kind       PipelineKind
	Handle     any
	Layout     any
	Pass       any
	Extent     Extent
	Generation uint64
}

// RenderTarget is the per-slot attachment set (framebuffer) a frame program writes into.
type RenderTarget struct {
	Slot   Slot
	Handle any
	Extent Extent
}

// DrawData references device buffers holding the vertex and index data of the scene. IndexCount
// is the number of 32-bit indices, the indexed draw always covers all of them.
type DrawData struct {
	Vertices   any
	Indices    any
	IndexCount uint32
}

// EventKind classifies surface notifications.
type EventKind int

const (
	// EventTick asks the presenter to run one acquire/submit/present cycle.
	EventTick EventKind = iota
	EventResize
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventResize:
		return "resize"
	case EventClose:
		return "close"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one notification fed into Presenter.Step. Extent is only meaningful for EventResize.
type Event struct {
	Kind   EventKind
	Extent Extent
}
