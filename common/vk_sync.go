package common

import (
	"fmt"
	"math"
	"time"

	vk "github.com/goki/vulkan"
)

// FencePool hands out unsignalled fences and takes them back once they fired. The presentation engine needs a
// fresh completion signal per submission and releases it only after it is known complete, so the number of
// fences alive settles at roughly the ring size.
type FencePool struct {
	device vk.Device
	free   []vk.Fence
	all    []vk.Fence
}

func NewFencePool(device vk.Device) *FencePool {
	return &FencePool{device: device}
}

func (fp *FencePool) Get() (vk.Fence, error) {
	if n := len(fp.free); n > 0 {
		f := fp.free[n-1]
		fp.free = fp.free[:n-1]
		return f, nil
	}
	f, err := VKSCreateFence(fp.device, false)
	if err != nil {
		return vk.NullFence, err
	}
	fp.all = append(fp.all, f)
	return f, nil
}

// Put resets f and makes it available again. f must not be pending.
func (fp *FencePool) Put(f vk.Fence) error {
	if err := vk.Error(vk.ResetFences(fp.device, 1, []vk.Fence{f})); err != nil {
		return fmt.Errorf("reset fence: %w", err)
	}
	fp.free = append(fp.free, f)
	return nil
}

// Destroy destroys every fence the pool created. The device has to be idle.
func (fp *FencePool) Destroy() {
	for _, f := range fp.all {
		vk.DestroyFence(fp.device, f, nil)
	}
	fp.all, fp.free = nil, nil
}

// fenceSignal is the renderer.Signal of one queue submission.
type fenceSignal struct {
	pool     *FencePool
	fence    vk.Fence
	fired    bool
	released bool
}

func (s *fenceSignal) Wait(timeout time.Duration) error {
	if s.fired {
		return nil
	}
	ret := vk.WaitForFences(s.pool.device, 1, []vk.Fence{s.fence}, vk.True, timeoutNanos(timeout))
	if err := ResultError(ret); err != nil {
		return err
	}
	s.fired = true
	return nil
}

func (s *fenceSignal) Signaled() (bool, error) {
	if s.fired {
		return true, nil
	}
	ret := vk.GetFenceStatus(s.pool.device, s.fence)
	switch ret {
	case vk.Success:
		s.fired = true
		return true, nil
	case vk.NotReady:
		return false, nil
	}
	return false, ResultError(ret)
}

func (s *fenceSignal) Release() {
	if s.released {
		return
	}
	s.released = true
	// On a failed reset the fence stays owned by the pool and is destroyed with it.
	_ = s.pool.Put(s.fence)
}

func (s *fenceSignal) String() string {
	return fmt.Sprintf("fence(%v)", s.fence)
}

// timeoutNanos converts to the nanosecond timeout vk.WaitForFences takes. A negative
// duration waits forever.
func timeoutNanos(d time.Duration) uint64 {
	if d < 0 {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

// acquireNanos is timeoutNanos for image acquisition, where zero also means no bound. A zero timeout would turn
// vk.AcquireNextImage into a poll that fails whenever every image is still queued for presentation.
func acquireNanos(d time.Duration) uint64 {
	if d <= 0 {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}
