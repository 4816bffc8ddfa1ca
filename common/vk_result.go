package common

import (
	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
)

// ResultError maps the vk.Result codes the presentation engine reacts to onto its sentinel errors. Everything
// else keeps the bindings' own error so the numeric code stays visible in logs.
func ResultError(ret vk.Result) error {
	switch ret {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return renderer.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return renderer.ErrOutOfDate
	case vk.ErrorDeviceLost:
		return renderer.ErrDeviceLost
	case vk.Timeout, vk.NotReady:
		return renderer.ErrWaitTimeout
	case vk.ErrorSurfaceLost:
		return renderer.ErrNoCompatibleSurface
	}
	return vk.Error(ret)
}
