package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"GPU_frame_presenter/common"
	"GPU_frame_presenter/config"
	"GPU_frame_presenter/model"
	"GPU_frame_presenter/renderer"
	"GPU_frame_presenter/shaders"
	"GPU_frame_presenter/stl"
	vk "github.com/goki/vulkan"
	"github.com/spf13/pflag"
	"github.com/veandco/go-sdl2/sdl"
)

const PROGRAM_NAME = "GPU frame presenter"

// stlFitSize is the clip space extent STL meshes are scaled to.
const stlFitSize = 1.5

var presentModes = map[string]vk.PresentMode{
	"fifo":      vk.PresentModeFifo,
	"mailbox":   vk.PresentModeMailbox,
	"immediate": vk.PresentModeImmediate,
}

var surfaceFormats = map[string]vk.Format{
	"bgra8_srgb":  vk.FormatB8g8r8a8Srgb,
	"rgba8_srgb":  vk.FormatR8g8b8a8Srgb,
	"bgra8_unorm": vk.FormatB8g8r8a8Unorm,
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)
	log.Printf("Starting %s", PROGRAM_NAME)
	log.Printf("Using GoLang: [%s]", runtime.Version())
}

func main() {
	// SDL and Vulkan calls have to stay on the thread that created the window.
	runtime.LockOSThread()

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Printf("Configuration: %v", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		log.Printf("%s stopped: %v", PROGRAM_NAME, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named on the command line and applies the flag overrides on top.
func loadConfig(args []string) (config.Config, error) {
	fs := pflag.NewFlagSet(PROGRAM_NAME, pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "TOML configuration file")
	width := fs.Int32("width", 0, "window width, overrides [window] width")
	height := fs.Int32("height", 0, "window height, overrides [window] height")
	validation := fs.Bool("validation", false, "enable the Vulkan validation layers")
	mesh := fs.String("mesh", "", `"quad", "cube" or a binary STL file`)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, err
	}
	if fs.Changed("width") {
		cfg.Window.Width = *width
	}
	if fs.Changed("height") {
		cfg.Window.Height = *height
	}
	if fs.Changed("validation") {
		cfg.Vulkan.Validation = *validation
	}
	if fs.Changed("mesh") {
		cfg.Scene.Mesh = *mesh
	}
	return cfg, cfg.Validate()
}

func run(cfg config.Config) error {
	// inUse is set when the presenter could not drain its submissions. The device may still read the
	// window surface, the device objects and the draw buffers, so they are leaked instead of destroyed.
	var inUse bool
	window := common.NewWindow(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, cfg.EnabledLayers())
	defer func() {
		if !inUse {
			window.Destroy()
		}
	}()

	opts := common.DefaultDeviceOptions()
	opts.ValidationLayers = cfg.EnabledLayers()
	opts.PresentMode = presentModes[cfg.Vulkan.PresentMode]
	opts.PreferredFormat = surfaceFormats[cfg.Vulkan.PreferredFormat]
	opts.ExtraImages = cfg.Present.ExtraImages
	device, err := common.NewDevice(window, opts)
	if err != nil {
		return err
	}
	defer func() {
		if !inUse {
			device.Destroy()
		}
	}()

	mesh, err := loadMesh(cfg.Scene.Mesh)
	if err != nil {
		return err
	}
	vertexBytes, err := mesh.VertexBytes()
	if err != nil {
		return err
	}
	draw, err := device.UploadDrawData(vertexBytes, mesh.VIndices)
	if err != nil {
		return err
	}
	defer func() {
		if !inUse {
			device.DestroyDrawBuffers(draw)
		}
	}()

	pipelines := common.NewPipelineBuilder(device, common.VertexLayout{
		Bindings:   []vk.VertexInputBindingDescription{model.GetVertexBindingDescription()},
		Attributes: model.GetVertexAttributeDescriptions(),
	})
	sources, err := shaderSources(cfg.Scene)
	if err != nil {
		return err
	}

	options := renderer.DefaultOptions()
	options.FenceTimeout = cfg.Present.FenceTimeout.Duration
	options.AcquireTimeout = cfg.Present.AcquireTimeout.Duration
	options.ClearColor = renderer.ClearColor(cfg.Scene.ClearColor)
	options.LogFrames = cfg.Debug.LogFrames

	presenter, err := renderer.NewPresenter(&renderer.Context{
		Device:    device,
		Surface:   window,
		Pipelines: pipelines,
		Shaders:   common.NewShaderCompiler(device),
		Sources:   sources,
		Kind:      renderer.PipelineGraphics,
		Draw:      draw.DrawData(),
		Options:   options,
	})
	if err != nil {
		return err
	}

	window.OnKey = func(key sdl.Keycode) {
		if key != sdl.K_F5 {
			return
		}
		sources, err := shaderSources(cfg.Scene)
		if err == nil {
			err = presenter.ReloadShaders(sources)
		}
		var fe *renderer.FatalError
		switch {
		case errors.As(err, &fe):
			log.Printf("Shader reload ended the presentation loop: %v", err)
		case err != nil:
			log.Printf("Shader reload failed, keeping the current pipeline: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := presenter.Run(ctx)
	stats := presenter.Stats()
	log.Printf("Presented %d frames in %v (%.1f fps), %d ring recreations, %d stale, %d acquire timeouts",
		stats.Frames, stats.Elapsed, stats.FPS(), stats.Recreations, stats.Stale, stats.AcquireTimeouts)
	closeErr := presenter.Close()
	if !resourcesReleasable(closeErr) {
		inUse = true
		log.Printf("Leaving the device and window alive, submitted work never completed: %v", closeErr)
	}
	if closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	return runErr
}

// resourcesReleasable reports whether the objects the presenter was built on may be destroyed after
// Close returned closeErr.
func resourcesReleasable(closeErr error) bool {
	return !errors.Is(closeErr, renderer.ErrResourcesInUse)
}

func loadMesh(name string) (*model.Mesh, error) {
	var mesh *model.Mesh
	switch name {
	case "quad":
		mesh = model.NewQuadMesh()
	case "cube":
		mesh = model.NewCubeMesh()
	default:
		var err error
		if mesh, err = stl.ReadStlFile(name); err != nil {
			return nil, err
		}
		mesh.FitToClipSpace(stlFitSize)
	}
	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf("mesh %q: %w", name, err)
	}
	return mesh, nil
}

// shaderSources is re-read on every reload so edits to the files on disk are picked up.
func shaderSources(scene config.Scene) ([]renderer.ShaderSource, error) {
	if len(scene.SPIRV) > 0 {
		return scene.ShaderStages()
	}
	src, err := shaders.Load(scene.Shader)
	if err != nil {
		return nil, err
	}
	return []renderer.ShaderSource{
		{Stage: renderer.StageVertex, Source: src},
		{Stage: renderer.StageFragment, Source: src},
	}, nil
}
