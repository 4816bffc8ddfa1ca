package common

import (
	"fmt"
	"log"

	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
	"github.com/veandco/go-sdl2/sdl"
)

const APPLICATION_NAME = "GPU frame presenter"
const APP_MAJOR, APP_MINOR, APP_PATCH = 1, 0, 0
const ENGINE_NAME = "No Engine"
const ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH = 1, 0, 0

const SDL_MAJOR, SDL_MINOR, SDL_PATCH = int(sdl.MAJOR_VERSION), int(sdl.MINOR_VERSION), int(sdl.PATCHLEVEL)

// Vulkan spec go bindings = v1.0.7, as per: https://github.com/goki/vulkan = 1.3.239
const VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH int = 1, 3, 239

// waitEventTimeoutMs bounds a single blocking wait while the window has no drawable area, so cancellation is
// still noticed by the caller.
const waitEventTimeoutMs = 100

// Window encapsulates all window handling components and vulkan access objects to talk, to actual draw on screen. It
// uses SDL for window management and user input, for a Vulkan application. Thus simplifying the process of getting a
// vk.surface to draw on and interact with. It is the renderer.Surface the presentation loop polls.
type Window struct {
	sdlVersion string
	vkVersion  string

	Win  *sdl.Window
	Inst vk.Instance
	Surf vk.Surface

	// OnKey receives key presses the window does not translate itself. ESC always closes.
	OnKey func(key sdl.Keycode)
}

// NewWindow constructs a new Window struct by default initializing things, stating some meta information and
// calling the corresponding init functions for the SDL window, Vulkan API instance and so on. On tear down,
// we need to destroy the: vk.surface, vk.instance and sdl.window.
func NewWindow(title string, w int32, h int32, validationLayers []string) *Window {
	window := &Window{
		sdlVersion: fmt.Sprintf("v%d.%d.%d", SDL_MAJOR, SDL_MINOR, SDL_PATCH),
		vkVersion:  fmt.Sprintf("v%d.%d.%d", VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH),
	}
	window.initSDLWindow(title, w, h)
	window.initVulkan()
	window.createVulkanInstance(validationLayers)
	window.createSdlVkSurface()
	log.Printf("Generated SDL/Vulkan window - SDL: %s Vulkan Spec: %s", window.sdlVersion, window.vkVersion)
	return window
}

// Destroy is a convenience method to tear down all relevant instances (vk.surface, vk.instance and sdl.window)
// that have been initialized by itself.
func (w *Window) Destroy() {
	vk.DestroySurface(w.Inst, w.Surf, nil)
	vk.DestroyInstance(w.Inst, nil)
	if err := w.Win.Destroy(); err != nil {
		log.Printf("Failed to destroy SDL window: %v", err)
	}
	sdl.Quit()
}

// Extent is the drawable size in pixels. A minimized window has none.
func (w *Window) Extent() renderer.Extent {
	if w.Win.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return renderer.Extent{}
	}
	width, height := w.Win.VulkanGetDrawableSize()
	if width <= 0 || height <= 0 {
		return renderer.Extent{}
	}
	return renderer.Extent{Width: uint32(width), Height: uint32(height)}
}

func (w *Window) PollEvent() (renderer.Event, bool) {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		if out, ok := w.translate(ev); ok {
			return out, true
		}
	}
	return renderer.Event{}, false
}

// WaitEvent blocks for a bounded time. ok is false if nothing relevant happened in that time.
func (w *Window) WaitEvent() (renderer.Event, bool) {
	ev := sdl.WaitEventTimeout(waitEventTimeoutMs)
	if ev == nil {
		return renderer.Event{}, false
	}
	return w.translate(ev)
}

func (w *Window) translate(ev sdl.Event) (renderer.Event, bool) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		return renderer.Event{Kind: renderer.EventClose}, true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			return renderer.Event{Kind: renderer.EventClose}, true
		case sdl.WINDOWEVENT_MINIMIZED:
			return renderer.Event{Kind: renderer.EventResize}, true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_MAXIMIZED:
			return renderer.Event{Kind: renderer.EventResize, Extent: w.Extent()}, true
		}
	case *sdl.KeyboardEvent:
		if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
			return renderer.Event{}, false
		}
		if e.Keysym.Sym == sdl.K_ESCAPE {
			return renderer.Event{Kind: renderer.EventClose}, true
		}
		if w.OnKey != nil {
			w.OnKey(e.Keysym.Sym)
		}
	}
	return renderer.Event{}, false
}

func (w *Window) initSDLWindow(title string, width int32, height int32) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		log.Panicf("Failed to initialize SDL: %v", err)
	}
	log.Println("Initialized SDL")
	win, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		width,
		height,
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_VULKAN,
	)
	if err != nil {
		log.Panicf("Failed to create SDL window for use with Vulkan: %v", err)
	}
	log.Printf("Created SDL window for use with Vulkan. Title: \"%s\", Width: %d, Height: %d", title, width, height)
	w.Win = win
}

func (w *Window) initVulkan() {
	// Find and load Vulkan addresses to be able to call driver level functions via provided mechanism
	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	err := vk.Init()
	if err != nil {
		log.Panicf("Failed to initialize Vulkan API: %v", err)
	}
}

func (w *Window) createVulkanInstance(validationLayers []string) {
	requiredExtensions := w.Win.VulkanGetInstanceExtensions()
	checkInstanceExtensionSupport(requiredExtensions)

	enableValidation := len(validationLayers) > 0
	if enableValidation {
		log.Printf("Validation enabled, checking layer support")
		checkValidationLayerSupport(validationLayers)
	}
	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PNext:              nil,
		PApplicationName:   TerminatedStr(APPLICATION_NAME),
		ApplicationVersion: vk.MakeVersion(APP_MAJOR, APP_MINOR, APP_PATCH),
		PEngineName:        TerminatedStr(ENGINE_NAME),
		EngineVersion:      vk.MakeVersion(ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH),
		ApiVersion:         vk.MakeVersion(VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH),
	}
	createInfo := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		PApplicationInfo:        applicationInfo,
		EnabledLayerCount:       0,
		PpEnabledLayerNames:     nil,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: TerminatedStrs(requiredExtensions),
	}
	if enableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = TerminatedStrs(validationLayers)
	}
	ins, err := create("instance", func(out *vk.Instance) vk.Result {
		return vk.CreateInstance(createInfo, nil, out)
	})
	if err == nil {
		err = vk.InitInstance(ins)
	}
	if err != nil {
		log.Panicf("Failed to create vk instance, due to: %v", err)
	}
	w.Inst = ins
}

func checkInstanceExtensionSupport(requiredInstanceExt []string) {
	supportedExtNames, err := instanceExtensionNames()
	if err != nil {
		log.Panicf("Failed to read instance extensions: %v", err)
	}
	log.Printf("Required instance extensions: %v", requiredInstanceExt)
	log.Printf("Available extensions (%d): %v", len(supportedExtNames), supportedExtNames)

	if !AllOfAinB(requiredInstanceExt, supportedExtNames) {
		log.Panicf("At least one required instance extension is not supported")
	}
	log.Println("Success - All required instance extensions are supported")
}

func checkValidationLayerSupport(requiredLayers []string) {
	supportedLayerNames, err := instanceLayerNames()
	if err != nil {
		log.Panicf("Failed to read instance layers: %v", err)
	}
	log.Printf("Desired validation layers: %v", requiredLayers)
	log.Printf("Supported layers (%d): %v", len(supportedLayerNames), supportedLayerNames)

	if !AllOfAinB(requiredLayers, supportedLayerNames) {
		log.Panicf("At least one desired validation layer is not supported")
	}
	log.Println("Success - All desired validation layers are supported")
}

func (w *Window) createSdlVkSurface() {
	surfPtr, err := w.Win.VulkanCreateSurface(w.Inst)
	if err != nil {
		log.Panicf("Failed to create SDL window's Vulkan-surface, due to: %v", err)
	}
	w.Surf = vk.SurfaceFromPointer(uintptr(surfPtr))
}
