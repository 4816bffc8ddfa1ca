package common

import (
	"errors"

	vk "github.com/goki/vulkan"
)

// QueueFamilyIndices names the queue families submissions and presentation go to. They may be the same
// family, which is the common case on desktop drivers.
type QueueFamilyIndices struct {
	Graphics uint32
	Present  uint32
}

// Shared reports whether graphics and present run on the same family, in which case the swap chain images
// are owned exclusively.
func (q QueueFamilyIndices) Shared() bool {
	return q.Graphics == q.Present
}

// Unique lists each family once, in the order they have to be requested from the device.
func (q QueueFamilyIndices) Unique() []uint32 {
	if q.Shared() {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

func findQueueFamilies(pd vk.PhysicalDevice, surf vk.Surface) (QueueFamilyIndices, error) {
	qFamilies := queueFamilies(pd)
	supportsPresent := func(i int) bool {
		var presentSupport vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surf, &presentSupport)
		return presentSupport == vk.True
	}
	return pickQueueFamilies(qFamilies, supportsPresent)
}

// pickQueueFamilies prefers a single family that can both draw and present, otherwise it falls back to the
// first family of each kind.
func pickQueueFamilies(qFamilies []vk.QueueFamilyProperties, supportsPresent func(int) bool) (QueueFamilyIndices, error) {
	graphics, present := -1, -1
	for i := range qFamilies {
		isGraphics := qFamilies[i].QueueCount > 0 && isBitSet(qFamilies[i], vk.QueueGraphicsBit)
		isPresent := supportsPresent(i)
		if isGraphics && isPresent {
			return QueueFamilyIndices{Graphics: uint32(i), Present: uint32(i)}, nil
		}
		if isGraphics && graphics < 0 {
			graphics = i
		}
		if isPresent && present < 0 {
			present = i
		}
	}
	if graphics < 0 {
		return QueueFamilyIndices{}, errors.New("unable to find graphics capable queue family")
	}
	if present < 0 {
		return QueueFamilyIndices{}, errors.New("unable to find present capable queue family for given surface")
	}
	return QueueFamilyIndices{Graphics: uint32(graphics), Present: uint32(present)}, nil
}

func isBitSet(qFamily vk.QueueFamilyProperties, bit vk.QueueFlagBits) bool {
	return vk.QueueFlagBits(qFamily.QueueFlags)&bit > 0
}

func (q QueueFamilyIndices) toQueueCreateInfos() []vk.DeviceQueueCreateInfo {
	families := q.Unique()
	infos := make([]vk.DeviceQueueCreateInfo, 0, len(families))
	for _, f := range families {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			PNext:            nil,
			Flags:            0,
			QueueFamilyIndex: f,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	return infos
}
