package common

import (
	"fmt"
	"log"
	"time"

	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
)

// SwapChain is the renderer.Swapchain of a Vulkan surface. Besides the images and their views it owns the
// semaphores every slot needs: one signalled by acquisition, one signalled when the slot's frame program has
// finished rendering and waited on by presentation.
type SwapChain struct {
	dc     *Device
	Handle vk.Swapchain

	SurfFormat  vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extend      vk.Extent2D
	Alpha       vk.CompositeAlphaFlagBits

	images   []vk.Image
	ImgViews []vk.ImageView

	// Acquisition signals a semaphore before the image index is known, so one more semaphore than images is
	// kept. The spare is handed to the driver and swapped into the acquired slot afterwards.
	slotAcquire []vk.Semaphore
	spare       vk.Semaphore
	renderDone  []vk.Semaphore
}

// CreateSwapchain reads the surface's current capabilities and creates a swap chain for extent. When old is set
// it is handed to the driver as the chain being replaced, destroying it remains the caller's job.
func (dc *Device) CreateSwapchain(surface renderer.Surface, extent renderer.Extent, old renderer.Swapchain) (renderer.Swapchain, error) {
	surf := dc.win.Surf
	if w, ok := surface.(*Window); ok {
		surf = w.Surf
	}
	oldHandle := vk.NullSwapchain
	if old != nil {
		oldSc, ok := old.(*SwapChain)
		if !ok {
			return nil, fmt.Errorf("create swap chain: foreign ring %T", old)
		}
		oldHandle = oldSc.Handle
	}

	details, err := swapChainSupport(dc.PhysicalDevice, surf)
	if err != nil {
		return nil, fmt.Errorf("create swap chain: %w", err)
	}
	if len(details.formats) == 0 || len(details.presentModes) == 0 {
		return nil, renderer.ErrNoCompatibleSurface
	}
	sc := &SwapChain{
		dc:          dc,
		SurfFormat:  selectSwapSurfaceFormat(details.formats, dc.opts.PreferredFormat, vk.ColorSpaceSrgbNonlinear),
		PresentMode: selectSwapPresentMode(details.presentModes, dc.opts.PresentMode),
		Extend:      chooseSwapExtent(details.capabilities, vk.Extent2D{Width: extent.Width, Height: extent.Height}),
		Alpha:       chooseCompositeAlpha(details.capabilities.SupportedCompositeAlpha),
	}
	if sc.Extend.Width == 0 || sc.Extend.Height == 0 {
		return nil, renderer.ErrZeroExtent
	}
	if err := sc.createSwapChainHandle(details.capabilities, surf, oldHandle); err != nil {
		return nil, err
	}
	if err := sc.readImages(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createImageViews(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createSyncObjects(); err != nil {
		sc.Destroy()
		return nil, err
	}
	log.Printf("Successfully created swap chain: %d images, %s, %s, %dx%d",
		len(sc.images), toStringSurfaceFormat(sc.SurfFormat), toStringPresentMode(sc.PresentMode), sc.Extend.Width, sc.Extend.Height)
	return sc, nil
}

func (sc *SwapChain) Images() int { return len(sc.ImgViews) }

func (sc *SwapChain) Format() renderer.Format { return renderer.Format(sc.SurfFormat.Format) }

func (sc *SwapChain) Extent() renderer.Extent {
	return renderer.Extent{Width: sc.Extend.Width, Height: sc.Extend.Height}
}

func (sc *SwapChain) CompositeAlpha() renderer.CompositeAlpha {
	return renderer.CompositeAlpha(sc.Alpha)
}

// Acquire asks the presentation engine for the next image, waiting without bound when timeout is zero. A
// suboptimal acquisition is reported as renderer.ErrSuboptimal and the frame is dropped by the caller, the
// semaphore signalled by it is never waited on and goes away with the chain.
func (sc *SwapChain) Acquire(timeout time.Duration) (renderer.Slot, renderer.Semaphore, error) {
	var idx uint32
	ret := vk.AcquireNextImage(sc.dc.D, sc.Handle, acquireNanos(timeout), sc.spare, vk.NullFence, &idx)
	if err := ResultError(ret); err != nil {
		return 0, nil, err
	}
	if int(idx) >= len(sc.slotAcquire) {
		return 0, nil, fmt.Errorf("acquire: image index %d of %d: %w", idx, len(sc.slotAcquire), renderer.ErrSlotOutOfRange)
	}
	sc.slotAcquire[idx], sc.spare = sc.spare, sc.slotAcquire[idx]
	return renderer.Slot(idx), sc.slotAcquire[idx], nil
}

// Destroy releases the chain and everything created for it. Semaphores may still be referenced by queued work,
// so the device is idled first.
func (sc *SwapChain) Destroy() {
	d := sc.dc.D
	if len(sc.slotAcquire) > 0 || sc.spare != nil || len(sc.renderDone) > 0 {
		if err := sc.dc.WaitIdle(); err != nil {
			log.Printf("Failed to idle device before destroying swap chain: %v", err)
		}
	}
	for _, s := range sc.slotAcquire {
		vk.DestroySemaphore(d, s, nil)
	}
	if sc.spare != nil {
		vk.DestroySemaphore(d, sc.spare, nil)
	}
	for _, s := range sc.renderDone {
		vk.DestroySemaphore(d, s, nil)
	}
	for i := range sc.ImgViews {
		vk.DestroyImageView(d, sc.ImgViews[i], nil)
	}
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(d, sc.Handle, nil)
	}
	sc.slotAcquire, sc.renderDone, sc.ImgViews, sc.images = nil, nil, nil, nil
	sc.spare, sc.Handle = nil, vk.NullSwapchain
}

func (sc *SwapChain) createSwapChainHandle(caps vk.SurfaceCapabilities, surf vk.Surface, old vk.Swapchain) error {
	imgCount := chooseImageCount(caps, sc.dc.opts.ExtraImages)

	// Depending on whether our queue families are the same for graphics and presentation, we need to choose different
	// swap chain configurations: https://vulkan-tutorial.com/Drawing_a_triangle/Presentation/Swap_chain
	qf := sc.dc.QFamilies
	sharingMode := vk.SharingModeExclusive
	var qFamIndices []uint32
	if !qf.Shared() {
		sharingMode = vk.SharingModeConcurrent
		qFamIndices = qf.Unique()
	}

	createInfo := &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		Surface:               surf,
		MinImageCount:         imgCount,
		ImageFormat:           sc.SurfFormat.Format,
		ImageColorSpace:       sc.SurfFormat.ColorSpace,
		ImageExtent:           sc.Extend,
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharingMode,
		QueueFamilyIndexCount: uint32(len(qFamIndices)),
		PQueueFamilyIndices:   qFamIndices,
		PreTransform:          caps.CurrentTransform,
		CompositeAlpha:        sc.Alpha,
		PresentMode:           sc.PresentMode,
		Clipped:               vk.True,
		OldSwapchain:          old,
	}

	handle, err := create("swap chain", func(out *vk.Swapchain) vk.Result {
		return vk.CreateSwapchain(sc.dc.D, createInfo, nil, out)
	})
	if err != nil {
		return err
	}
	sc.Handle = handle
	return nil
}

func (sc *SwapChain) readImages() error {
	images, err := swapChainImages(sc.dc.D, sc.Handle)
	if err != nil {
		return err
	}
	sc.images = images
	return nil
}

func (sc *SwapChain) createImageViews() error {
	sc.ImgViews = make([]vk.ImageView, 0, len(sc.images))
	for i := range sc.images {
		view, err := VKCreate2DImageView(sc.dc.D, sc.images[i], sc.SurfFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		sc.ImgViews = append(sc.ImgViews, view)
	}
	return nil
}

func (sc *SwapChain) createSyncObjects() error {
	n := len(sc.images)
	sc.slotAcquire = make([]vk.Semaphore, 0, n)
	sc.renderDone = make([]vk.Semaphore, 0, n)
	for i := 0; i < n; i++ {
		acq, err := VKSCreateSemaphore(sc.dc.D)
		if err != nil {
			return fmt.Errorf("acquire semaphore of slot %d: %w", i, err)
		}
		sc.slotAcquire = append(sc.slotAcquire, acq)
		done, err := VKSCreateSemaphore(sc.dc.D)
		if err != nil {
			return fmt.Errorf("render finished semaphore of slot %d: %w", i, err)
		}
		sc.renderDone = append(sc.renderDone, done)
	}
	spare, err := VKSCreateSemaphore(sc.dc.D)
	if err != nil {
		return fmt.Errorf("spare acquire semaphore: %w", err)
	}
	sc.spare = spare
	return nil
}

// CreateRenderTargets creates one framebuffer per ring image for the pipeline's render pass.
func (dc *Device) CreateRenderTargets(ring renderer.Swapchain, pipeline renderer.Pipeline) ([]renderer.RenderTarget, error) {
	sc, ok := ring.(*SwapChain)
	if !ok {
		return nil, fmt.Errorf("create render targets: foreign ring %T", ring)
	}
	renderPass, ok := pipeline.Pass.(vk.RenderPass)
	if !ok {
		return nil, fmt.Errorf("create render targets: %s pipeline has no render pass", pipeline.Kind)
	}
	targets := make([]renderer.RenderTarget, 0, len(sc.ImgViews))
	for i := range sc.ImgViews {
		framebufferInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			PNext:           nil,
			Flags:           0,
			RenderPass:      renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{sc.ImgViews[i]},
			Width:           sc.Extend.Width,
			Height:          sc.Extend.Height,
			Layers:          1,
		}
		fb, err := create("frame buffer", func(out *vk.Framebuffer) vk.Result {
			return vk.CreateFramebuffer(dc.D, &framebufferInfo, nil, out)
		})
		if err != nil {
			dc.DestroyRenderTargets(targets)
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		targets = append(targets, renderer.RenderTarget{Slot: renderer.Slot(i), Handle: fb, Extent: sc.Extent()})
	}
	log.Printf("Successfully created %d frame buffers", len(targets))
	return targets, nil
}

func (dc *Device) DestroyRenderTargets(targets []renderer.RenderTarget) {
	for _, t := range targets {
		if fb, ok := t.Handle.(vk.Framebuffer); ok {
			vk.DestroyFramebuffer(dc.D, fb, nil)
		}
	}
}

type SwapChainDetails struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func selectSwapSurfaceFormat(formats []vk.SurfaceFormat, desiredFormat vk.Format, desiredColorSpace vk.ColorSpace) vk.SurfaceFormat {
	// A single undefined entry means the surface takes whatever we ask for.
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: desiredFormat, ColorSpace: desiredColorSpace}
	}
	for _, af := range formats {
		if af.Format == desiredFormat && af.ColorSpace == desiredColorSpace {
			return af
		}
	}
	fallbackFormat := formats[0]
	log.Printf("Did not find prefered SurfaceFormat, selecting first one available. (%s)", toStringSurfaceFormat(fallbackFormat))
	return fallbackFormat
}

func selectSwapPresentMode(presentModes []vk.PresentMode, desiredMode vk.PresentMode) vk.PresentMode {
	for _, pm := range presentModes {
		if pm == desiredMode {
			return pm
		}
	}
	// FIFO is the only mode every implementation has to support.
	log.Printf("Did not find prefered PresentMode %s, selecting fifo", toStringPresentMode(desiredMode))
	return vk.PresentModeFifo
}

// undefinedExtent in CurrentExtent means the surface size is determined by the swap chain.
const undefinedExtent = 0xFFFFFFFF

func chooseSwapExtent(caps vk.SurfaceCapabilities, want vk.Extent2D) vk.Extent2D {
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clamp(want.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(want.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for extra images on top of the minimum. MaxImageCount 0 means no limit.
func chooseImageCount(caps vk.SurfaceCapabilities, extra uint32) uint32 {
	imgCount := caps.MinImageCount + extra
	if imgCount < 2 {
		imgCount = 2
	}
	if caps.MaxImageCount > 0 && imgCount > caps.MaxImageCount {
		imgCount = caps.MaxImageCount
	}
	return imgCount
}

// chooseCompositeAlpha picks the first supported mode, opaque preferred.
func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for _, f := range compositeAlphaFlags {
		if supported&vk.CompositeAlphaFlags(f) != 0 {
			return f
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}

func checkSwapChainAdequacy(pd vk.PhysicalDevice, surface vk.Surface) bool {
	scDetails, err := swapChainSupport(pd, surface)
	return err == nil && len(scDetails.formats) > 0 && len(scDetails.presentModes) > 0
}

// VKCreate2DImageView creates a view covering the whole first mip level and layer of image.
func VKCreate2DImageView(device vk.Device, image vk.Image, format vk.Format, aspectFlags vk.ImageAspectFlags) (vk.ImageView, error) {
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		PNext:    nil,
		Flags:    0,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	return create("image view", func(out *vk.ImageView) vk.Result {
		return vk.CreateImageView(device, createInfo, nil, out)
	})
}
