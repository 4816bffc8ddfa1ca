package common

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// Device and instance queries. The bindings hand back C layouts, so every struct read here is Deref'd before use.

func instanceExtensionNames() ([]string, error) {
	exts, err := enumerate("instance extensions", func(n *uint32, out []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateInstanceExtensionProperties("", n, out)
	})
	if err != nil {
		return nil, err
	}
	return extensionNames(exts), nil
}

func instanceLayerNames() ([]string, error) {
	layers, err := enumerate("instance layers", func(n *uint32, out []vk.LayerProperties) vk.Result {
		return vk.EnumerateInstanceLayerProperties(n, out)
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(layers))
	for i := range layers {
		layers[i].Deref()
		names[i] = vk.ToString(layers[i].LayerName[:])
	}
	return names, nil
}

func deviceExtensionNames(pd vk.PhysicalDevice) ([]string, error) {
	exts, err := enumerate("device extensions", func(n *uint32, out []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateDeviceExtensionProperties(pd, "", n, out)
	})
	if err != nil {
		return nil, err
	}
	return extensionNames(exts), nil
}

func extensionNames(exts []vk.ExtensionProperties) []string {
	names := make([]string, len(exts))
	for i := range exts {
		exts[i].Deref()
		names[i] = vk.ToString(exts[i].ExtensionName[:])
	}
	return names
}

func physicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	return enumerate("physical devices", func(n *uint32, out []vk.PhysicalDevice) vk.Result {
		return vk.EnumeratePhysicalDevices(instance, n, out)
	})
}

func physicalDeviceProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	return props
}

func queueFamilies(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	// The query has no result, so enumerate cannot fail here.
	families, _ := enumerate("queue families", func(n *uint32, out []vk.QueueFamilyProperties) vk.Result {
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, n, out)
		return vk.Success
	})
	for i := range families {
		families[i].Deref()
		families[i].MinImageTransferGranularity.Deref()
	}
	return families
}

// swapChainSupport queries everything the surface allows for a swap chain on pd. The capabilities change with the
// window size, so this is read again for every (re)creation.
func swapChainSupport(pd vk.PhysicalDevice, surface vk.Surface) (SwapChainDetails, error) {
	var details SwapChainDetails
	caps := &details.capabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(pd, surface, caps)); err != nil {
		return details, fmt.Errorf("read surface capabilities: %w", err)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var err error
	if details.formats, err = enumerate("surface formats", func(n *uint32, out []vk.SurfaceFormat) vk.Result {
		return vk.GetPhysicalDeviceSurfaceFormats(pd, surface, n, out)
	}); err != nil {
		return details, err
	}
	for i := range details.formats {
		details.formats[i].Deref()
	}
	details.presentModes, err = enumerate("present modes", func(n *uint32, out []vk.PresentMode) vk.Result {
		return vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, n, out)
	})
	return details, err
}

func swapChainImages(device vk.Device, swapChain vk.Swapchain) ([]vk.Image, error) {
	return enumerate("swap chain images", func(n *uint32, out []vk.Image) vk.Result {
		return vk.GetSwapchainImages(device, swapChain, n, out)
	})
}

func deviceMemoryProperties(pd vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &props)
	props.Deref()
	for i := range props.MemoryTypes {
		props.MemoryTypes[i].Deref()
	}
	for i := range props.MemoryHeaps {
		props.MemoryHeaps[i].Deref()
	}
	return props
}

func bufferMemoryRequirements(device vk.Device, b vk.Buffer) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, b, &reqs)
	reqs.Deref()
	return reqs
}
