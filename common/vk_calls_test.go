package common

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateCountsThenFills(t *testing.T) {
	var calls int
	got, err := enumerate("present modes", func(n *uint32, out []vk.PresentMode) vk.Result {
		calls++
		if out == nil {
			*n = 3
			return vk.Success
		}
		require.Len(t, out, 3)
		copy(out, []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox})
		*n = 2
		return vk.Success
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, got, "trimmed to the filled count")
}

func TestEnumerateEmptySkipsFill(t *testing.T) {
	var calls int
	got, err := enumerate("layers", func(n *uint32, out []vk.LayerProperties) vk.Result {
		calls++
		return vk.Success
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, calls)
}

func TestEnumerateErrors(t *testing.T) {
	_, err := enumerate("physical devices", func(n *uint32, out []vk.PhysicalDevice) vk.Result {
		return vk.ErrorInitializationFailed
	})
	assert.ErrorContains(t, err, "count physical devices")

	_, err = enumerate("swap chain images", func(n *uint32, out []vk.Image) vk.Result {
		if out == nil {
			*n = 2
			return vk.Success
		}
		return vk.ErrorOutOfHostMemory
	})
	assert.ErrorContains(t, err, "read 2 swap chain images")
}

func TestCreate(t *testing.T) {
	n, err := create("counter", func(out *uint32) vk.Result {
		*out = 7
		return vk.Success
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), n)

	n, err = create("counter", func(out *uint32) vk.Result {
		*out = 7
		return vk.ErrorOutOfDeviceMemory
	})
	assert.ErrorContains(t, err, "create counter")
	assert.Zero(t, n, "no half built handle is returned")
}
