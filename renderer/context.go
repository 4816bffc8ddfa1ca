package renderer

import (
	"fmt"
	"time"
)

// ShaderSource is shader text tagged with the stage it is compiled for.
type ShaderSource struct {
	Stage  Stage
	Source string
}

// Options tunes the presentation loop.
type Options struct {
	// FenceTimeout bounds every wait on a completion signal. Exceeding it is fatal.
	FenceTimeout time.Duration
	// AcquireTimeout bounds a single image acquisition. Zero waits until the presentation engine
	// hands out an image. Running into it drops the tick, it is not fatal.
	AcquireTimeout time.Duration
	ClearColor     ClearColor
	// LogFrames logs every acquire, submit and present.
	LogFrames bool
}

func DefaultOptions() Options {
	return Options{
		FenceTimeout:   5 * time.Second,
		AcquireTimeout: 0,
		ClearColor:     ClearColor{0, 0, 1, 1},
	}
}

// Context is the resource context shared by every component of the engine. It is built once,
// handed to the constructors by pointer and not modified afterwards.
type Context struct {
	Device    Device
	Surface   Surface
	Pipelines PipelineBuilder
	Shaders   ShaderCompiler
	// Sources are compiled once when the presenter starts and reused for every pipeline rebuild.
	Sources []ShaderSource
	Kind    PipelineKind
	Draw    DrawData
	Options Options
}

func (c *Context) validate() error {
	switch {
	case c.Device == nil:
		return fmt.Errorf("context: no device")
	case c.Surface == nil:
		return fmt.Errorf("context: no surface")
	case c.Pipelines == nil:
		return fmt.Errorf("context: no pipeline builder")
	case c.Shaders == nil:
		return fmt.Errorf("context: no shader compiler")
	case len(c.Sources) == 0:
		return fmt.Errorf("context: no shader sources")
	case c.Options.FenceTimeout <= 0:
		return fmt.Errorf("context: fence timeout %v", c.Options.FenceTimeout)
	case c.Options.AcquireTimeout < 0:
		return fmt.Errorf("context: acquire timeout %v", c.Options.AcquireTimeout)
	}
	return nil
}
