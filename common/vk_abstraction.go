package common

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// Utility functions that reduce visual clutter by abstracting some of the common default values into very obvious
// functions that should cover their respective use case most of the time. This is done to cut down on labor writing
// things out that are unlikely to change or are not relevant now. The main way typing is reduced by moving or
// defaulting parameters from 'createInfo' structs.

func VKAllocateCommandBuffersPrimary(device vk.Device, cmdPool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	cbAllocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		PNext:              nil,
		CommandPool:        cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	return VKSAllocateCommandBuffers(device, &cbAllocateInfo)
}

// VKBeginSingleTimeCommands allocates a primary command buffer and starts recording it for a one-off submission
// such as a staging copy. Pair with VKEndSingleTimeCommands.
func VKBeginSingleTimeCommands(device vk.Device, cmdPool vk.CommandPool) (vk.CommandBuffer, error) {
	buffers, err := VKAllocateCommandBuffersPrimary(device, cmdPool, 1)
	if err != nil {
		return nil, err
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType:            vk.StructureTypeCommandBufferBeginInfo,
		PNext:            nil,
		Flags:            vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
		PInheritanceInfo: nil,
	}
	if err := vk.Error(vk.BeginCommandBuffer(buffers[0], &beginInfo)); err != nil {
		vk.FreeCommandBuffers(device, cmdPool, 1, buffers)
		return nil, err
	}
	return buffers[0], nil
}

// VKEndSingleTimeCommands submits cb to q, waits for the queue to finish and frees cb again.
func VKEndSingleTimeCommands(device vk.Device, cmdPool vk.CommandPool, q vk.Queue, cb vk.CommandBuffer) error {
	buffers := []vk.CommandBuffer{cb}
	defer vk.FreeCommandBuffers(device, cmdPool, 1, buffers)
	if err := vk.Error(vk.EndCommandBuffer(cb)); err != nil {
		return fmt.Errorf("end single time commands: %w", err)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		PNext:              nil,
		CommandBufferCount: 1,
		PCommandBuffers:    buffers,
	}
	if err := ResultError(vk.QueueSubmit(q, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
		return fmt.Errorf("submit single time commands: %w", err)
	}
	return ResultError(vk.QueueWaitIdle(q))
}
