package common

import (
	"errors"
	"fmt"
	"log"
	"unsafe"

	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
)

// This Code section contains allocation helper functions. It aims to simplify the allocation of buffers on the
// selected device.

type Buffer struct {
	Handle    vk.Buffer
	DeviceMem vk.DeviceMemory
	Size      vk.DeviceSize
	Usage     vk.BufferUsageFlags
	props     vk.MemoryPropertyFlags
}

func CreateBuffer(dc *Device, size vk.DeviceSize, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*Buffer, error) {
	// Buffer Handle of fitting Size
	bufferInfo := vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		Size:                  size,
		Usage:                 usage,
		SharingMode:           vk.SharingModeExclusive,
		QueueFamilyIndexCount: 0,
		PQueueFamilyIndices:   nil,
	}

	buf, err := create("buffer", func(out *vk.Buffer) vk.Result {
		return vk.CreateBuffer(dc.D, &bufferInfo, nil, out)
	})
	if err != nil {
		return nil, err
	}

	bufRequirements := bufferMemoryRequirements(dc.D, buf)
	memType, err := findMemoryType(dc.PdMemoryProps, bufRequirements.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(dc.D, buf, nil)
		return nil, err
	}

	// Allocate device memory
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           nil,
		AllocationSize:  bufRequirements.Size,
		MemoryTypeIndex: memType,
	}
	deviceMem, err := create("buffer memory", func(out *vk.DeviceMemory) vk.Result {
		return vk.AllocateMemory(dc.D, &allocInfo, nil, out)
	})
	if err != nil {
		vk.DestroyBuffer(dc.D, buf, nil)
		return nil, err
	}

	// Associate allocated memory with buffer Handle
	if err := vk.Error(vk.BindBufferMemory(dc.D, buf, deviceMem, 0)); err != nil {
		vk.DestroyBuffer(dc.D, buf, nil)
		vk.FreeMemory(dc.D, deviceMem, nil)
		return nil, fmt.Errorf("bind buffer memory: %w", err)
	}

	return &Buffer{
		Handle:    buf,
		DeviceMem: deviceMem,
		Size:      size,
		Usage:     usage,
		props:     props,
	}, nil
}

// CopyToDeviceBuffer is a convenience method to simplify the process of mapping device memory to CPU memory,
// copy bytes over to the GPU and unmapping the memory again. This requires the buffer to
// be: vk.MemoryPropertyHostVisibleBit and vk.MemoryPropertyHostCoherentBit
func CopyToDeviceBuffer(dc *Device, deviceBuf *Buffer, payload []byte) error {
	hostVisCoh := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	if deviceBuf.props&hostVisCoh != hostVisCoh {
		return errors.New("copy to device buffer: buffer memory is not host visible and coherent")
	}
	// this function only allows to copy a "full buffer" worth of payload starting at offset = 0
	if deviceBuf.Size != vk.DeviceSize(uint64(len(payload))) {
		return fmt.Errorf("copy to device buffer: buffer is %d bytes, payload %d", deviceBuf.Size, len(payload))
	}
	// Map -> copy -> Unmap
	var pData unsafe.Pointer
	if err := vk.Error(vk.MapMemory(dc.D, deviceBuf.DeviceMem, 0, deviceBuf.Size, 0, &pData)); err != nil {
		return fmt.Errorf("map device memory: %w", err)
	}
	vk.Memcopy(pData, payload)
	vk.UnmapMemory(dc.D, deviceBuf.DeviceMem)
	return nil
}

func DestroyBuffer(dc *Device, buffer *Buffer) {
	if buffer == nil {
		return
	}
	vk.DestroyBuffer(dc.D, buffer.Handle, nil)
	vk.FreeMemory(dc.D, buffer.DeviceMem, nil)
}

// copyBuffer records and runs a full size copy from src to dst using a single time command buffer.
func copyBuffer(dc *Device, src *Buffer, dst *Buffer) error {
	cb, err := VKBeginSingleTimeCommands(dc.D, dc.CmdPool)
	if err != nil {
		return fmt.Errorf("copy buffer: %w", err)
	}
	vk.CmdCopyBuffer(cb, src.Handle, dst.Handle, 1, []vk.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: src.Size}})
	return VKEndSingleTimeCommands(dc.D, dc.CmdPool, dc.GraphicsQ, cb)
}

// uploadDeviceLocal creates a device local buffer for usage and fills it with payload through a host visible
// staging buffer.
func uploadDeviceLocal(dc *Device, payload []byte, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	size := vk.DeviceSize(len(payload))
	staging, err := CreateBuffer(dc, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer DestroyBuffer(dc, staging)
	if err := CopyToDeviceBuffer(dc, staging, payload); err != nil {
		return nil, err
	}
	buf, err := CreateBuffer(dc, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit|usage),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	if err := copyBuffer(dc, staging, buf); err != nil {
		DestroyBuffer(dc, buf)
		return nil, err
	}
	return buf, nil
}

// DrawBuffers holds the device buffers behind a renderer.DrawData.
type DrawBuffers struct {
	Vertices *Buffer
	Indices  *Buffer
	count    uint32
}

// UploadDrawData copies vertex bytes and 32-bit indices into device local buffers.
func (dc *Device) UploadDrawData(vertexBytes []byte, indices []uint32) (*DrawBuffers, error) {
	if len(vertexBytes) == 0 || len(indices) == 0 {
		return nil, errors.New("upload draw data: no vertices or indices")
	}
	indexBytes, err := RawBytes(indices)
	if err != nil {
		return nil, err
	}
	vbuf, err := uploadDeviceLocal(dc, vertexBytes, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, fmt.Errorf("upload vertices: %w", err)
	}
	ibuf, err := uploadDeviceLocal(dc, indexBytes, vk.BufferUsageIndexBufferBit)
	if err != nil {
		DestroyBuffer(dc, vbuf)
		return nil, fmt.Errorf("upload indices: %w", err)
	}
	log.Printf("Uploaded draw data: %d vertex bytes, %d indices", len(vertexBytes), len(indices))
	return &DrawBuffers{Vertices: vbuf, Indices: ibuf, count: uint32(len(indices))}, nil
}

// DrawData is the view of the buffers the frame recorder binds.
func (db *DrawBuffers) DrawData() renderer.DrawData {
	return renderer.DrawData{Vertices: db.Vertices, Indices: db.Indices, IndexCount: db.count}
}

func (dc *Device) DestroyDrawBuffers(db *DrawBuffers) {
	if db == nil {
		return
	}
	DestroyBuffer(dc, db.Vertices)
	DestroyBuffer(dc, db.Indices)
}

func findMemoryType(memProps vk.PhysicalDeviceMemoryProperties, typeFilter uint32, propFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		ofType := (typeFilter & (1 << i)) > 0
		hasProperties := memProps.MemoryTypes[i].PropertyFlags&propFlags == propFlags
		if ofType && hasProperties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type in filter %b with properties %b", typeFilter, propFlags)
}
