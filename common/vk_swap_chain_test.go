package common

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestChooseSwapExtent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 640, Height: 480},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, chooseSwapExtent(caps, vk.Extent2D{Width: 800, Height: 600}),
		"a defined current extent wins over the window size")

	caps.CurrentExtent = vk.Extent2D{Width: undefinedExtent, Height: undefinedExtent}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, chooseSwapExtent(caps, vk.Extent2D{Width: 800, Height: 600}))
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 1}, chooseSwapExtent(caps, vk.Extent2D{Width: 9000, Height: 0}))
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max uint32
		extra    uint32
		want     uint32
	}{
		{"min plus extra", 2, 8, 1, 3},
		{"capped by max", 3, 3, 1, 3},
		{"no max", 3, 0, 2, 5},
		{"at least double buffered", 1, 0, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := vk.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
			assert.Equal(t, tt.want, chooseImageCount(caps, tt.extra))
		})
	}
}

func TestChooseCompositeAlpha(t *testing.T) {
	all := vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit | vk.CompositeAlphaInheritBit)
	assert.Equal(t, vk.CompositeAlphaOpaqueBit, chooseCompositeAlpha(all))
	assert.Equal(t, vk.CompositeAlphaInheritBit, chooseCompositeAlpha(vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit)))
	assert.Equal(t, vk.CompositeAlphaPreMultipliedBit,
		chooseCompositeAlpha(vk.CompositeAlphaFlags(vk.CompositeAlphaPreMultipliedBit|vk.CompositeAlphaPostMultipliedBit)))
}

func TestSelectSwapSurfaceFormat(t *testing.T) {
	srgb := vk.ColorSpaceSrgbNonlinear
	undefined := []vk.SurfaceFormat{{Format: vk.FormatUndefined, ColorSpace: srgb}}
	assert.Equal(t, vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: srgb},
		selectSwapSurfaceFormat(undefined, vk.FormatB8g8r8a8Srgb, srgb))

	formats := []vk.SurfaceFormat{
		{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: srgb},
		{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: srgb},
	}
	assert.Equal(t, formats[1], selectSwapSurfaceFormat(formats, vk.FormatR8g8b8a8Srgb, srgb))
	assert.Equal(t, formats[0], selectSwapSurfaceFormat(formats, vk.FormatB8g8r8a8Srgb, srgb), "falls back to the first format")
}

func TestSelectSwapPresentMode(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}
	assert.Equal(t, vk.PresentModeMailbox, selectSwapPresentMode(modes, vk.PresentModeMailbox))
	assert.Equal(t, vk.PresentModeFifo, selectSwapPresentMode(modes, vk.PresentModeImmediate))
	assert.Equal(t, vk.PresentModeFifo, selectSwapPresentMode(nil, vk.PresentModeMailbox))
}
