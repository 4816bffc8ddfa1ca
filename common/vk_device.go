package common

import (
	"errors"
	"fmt"
	"log"
	"sort"

	vk "github.com/goki/vulkan"
)

var DEVICE_EXTENSIONS = []string{
	"VK_KHR_swapchain",
}

// DeviceOptions carries the user facing choices the backend makes on behalf of the presentation engine.
type DeviceOptions struct {
	// ValidationLayers are enabled on the device as well as the instance. Empty disables validation.
	ValidationLayers []string
	PresentMode      vk.PresentMode
	PreferredFormat  vk.Format
	// ExtraImages is added to the surface's minimum image count.
	ExtraImages uint32
}

func DefaultDeviceOptions() DeviceOptions {
	return DeviceOptions{
		PresentMode:     vk.PresentModeFifo,
		PreferredFormat: vk.FormatB8g8r8a8Srgb,
		ExtraImages:     1,
	}
}

// Device represents the interfacing objects between the SDL window, the Hardware running Vulkan
// and the rest of the rendering engine. It implements renderer.Device: swap chains, render targets,
// command recording, submission and presentation all go through it.
type Device struct {
	PhysicalDevice vk.PhysicalDevice
	PdProps        vk.PhysicalDeviceProperties
	PdMemoryProps  vk.PhysicalDeviceMemoryProperties
	QFamilies      QueueFamilyIndices

	D         vk.Device
	GraphicsQ vk.Queue
	PresentQ  vk.Queue
	CmdPool   vk.CommandPool

	win    *Window
	opts   DeviceOptions
	fences *FencePool
}

// NewDevice selects a physical device able to present to w and creates the logical device, its queues and the
// command pool frame programs are allocated from.
func NewDevice(w *Window, opts DeviceOptions) (*Device, error) {
	dc := &Device{win: w, opts: opts}
	if err := dc.selectPhysicalDevice(w.Inst, w.Surf); err != nil {
		return nil, err
	}
	if err := dc.createLogicalDevice(); err != nil {
		return nil, err
	}
	pool, err := VKSCreateCommandPool(
		dc.D,
		vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		dc.QFamilies.Graphics,
	)
	if err != nil {
		vk.DestroyDevice(dc.D, nil)
		return nil, err
	}
	dc.CmdPool = pool
	dc.fences = NewFencePool(dc.D)
	return dc, nil
}

// Destroy all objects created by itself. It does not destroy the window provided for instantiation.
func (dc *Device) Destroy() {
	dc.fences.Destroy()
	vk.DestroyCommandPool(dc.D, dc.CmdPool, nil)
	vk.DestroyDevice(dc.D, nil)
}

func (dc *Device) WaitIdle() error {
	return ResultError(vk.DeviceWaitIdle(dc.D))
}

// Name is the driver reported device name.
func (dc *Device) Name() string {
	return vk.ToString(dc.PdProps.DeviceName[:])
}

func (dc *Device) selectPhysicalDevice(in vk.Instance, su vk.Surface) error {
	availableDevices, err := physicalDevices(in)
	if err != nil {
		return err
	}
	type candidate struct {
		pd    vk.PhysicalDevice
		props vk.PhysicalDeviceProperties
		qf    QueueFamilyIndices
	}
	var suitable []candidate
	for i := range availableDevices {
		props := physicalDeviceProperties(availableDevices[i])
		log.Printf("Physical device\n%s", ToStringPhysicalDeviceTable(props, queueFamilies(availableDevices[i])))
		qf, err := isDeviceSuitable(availableDevices[i], su)
		if err != nil {
			log.Printf("Skipping %s: %v", vk.ToString(props.DeviceName[:]), err)
			continue
		}
		suitable = append(suitable, candidate{pd: availableDevices[i], props: props, qf: qf})
	}
	if len(suitable) == 0 {
		return errors.New("no suitable physical device (GPU) found")
	}
	sort.SliceStable(suitable, func(i, j int) bool {
		return rankDeviceType(suitable[i].props.DeviceType) > rankDeviceType(suitable[j].props.DeviceType)
	})
	chosen := suitable[0]
	dc.PhysicalDevice = chosen.pd
	dc.QFamilies = chosen.qf
	dc.PdProps = chosen.props
	dc.PdProps.Limits.Deref()
	dc.PdMemoryProps = deviceMemoryProperties(dc.PhysicalDevice)
	log.Printf("Selected device %s (%s)", dc.Name(), toStringDeviceType(dc.PdProps.DeviceType))
	return nil
}

// rankDeviceType orders device types by preference. Discrete GPUs win, anything that can present is accepted.
func rankDeviceType(dt vk.PhysicalDeviceType) int {
	switch dt {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 4
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 3
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 2
	case vk.PhysicalDeviceTypeCpu:
		return 1
	}
	return 0
}

func isDeviceSuitable(pd vk.PhysicalDevice, su vk.Surface) (QueueFamilyIndices, error) {
	indices, err := findQueueFamilies(pd, su)
	if err != nil {
		return QueueFamilyIndices{}, err
	}
	if !checkDeviceExtensionSupport(pd, DEVICE_EXTENSIONS) {
		return QueueFamilyIndices{}, fmt.Errorf("missing device extensions %v", DEVICE_EXTENSIONS)
	}
	if !checkSwapChainAdequacy(pd, su) {
		return QueueFamilyIndices{}, errors.New("surface offers no formats or present modes")
	}
	return indices, nil
}

func (dc *Device) createLogicalDevice() error {
	queueInfos := dc.QFamilies.toQueueCreateInfos()
	deviceCreatInfo := &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledLayerCount:       0,
		PpEnabledLayerNames:     nil,
		EnabledExtensionCount:   uint32(len(DEVICE_EXTENSIONS)),
		PpEnabledExtensionNames: TerminatedStrs(DEVICE_EXTENSIONS),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
	}
	if len(dc.opts.ValidationLayers) > 0 {
		deviceCreatInfo.EnabledLayerCount = uint32(len(dc.opts.ValidationLayers))
		deviceCreatInfo.PpEnabledLayerNames = TerminatedStrs(dc.opts.ValidationLayers)
	}

	var err error
	dc.D, err = create("logical device", func(out *vk.Device) vk.Result {
		return vk.CreateDevice(dc.PhysicalDevice, deviceCreatInfo, nil, out)
	})
	if err != nil {
		return err
	}
	graphics, present := dc.QFamilies.Graphics, dc.QFamilies.Present
	vk.GetDeviceQueue(dc.D, graphics, 0, &dc.GraphicsQ)
	vk.GetDeviceQueue(dc.D, present, 0, &dc.PresentQ)
	log.Printf("Created logical device, graphics family %d, present family %d", graphics, present)
	return nil
}

func checkDeviceExtensionSupport(pd vk.PhysicalDevice, requiredDeviceExt []string) bool {
	supportedExtNames, err := deviceExtensionNames(pd)
	if err != nil {
		log.Printf("Failed to read device extensions: %v", err)
		return false
	}
	log.Printf("Required device extensions: %v", requiredDeviceExt)
	log.Printf("Available device extensions (%d) [...]", len(supportedExtNames))
	return AllOfAinB(requiredDeviceExt, supportedExtNames)
}
