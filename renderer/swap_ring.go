package renderer

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// SwapRing is the presentable image ring together with the properties it was created with. It is
// never changed in place, recreation produces a new value.
type SwapRing struct {
	chain Swapchain

	Images         int
	Format         Format
	Extent         Extent
	CompositeAlpha CompositeAlpha
	// Generation counts ring creations, starting at 1.
	Generation uint64
}

// Swapchain exposes the backend ring for submission and presentation.
func (r *SwapRing) Swapchain() Swapchain {
	return r.chain
}

// Valid reports whether slot indexes an image of this ring.
func (r *SwapRing) Valid(slot Slot) bool {
	return int(slot) < r.Images
}

// Acquisition is the result of AcquireNext. If Stale is set, Slot and Wait carry no meaning and the
// ring has to be recreated before anything is presented.
type Acquisition struct {
	Slot  Slot
	Wait  Semaphore
	Stale bool
	// Suboptimal is set next to Stale when the driver did hand out an image but asked for a new
	// ring.
	Suboptimal bool
}

// RingManager owns creation, recreation and acquisition of the swap ring.
type RingManager struct {
	ctx        *Context
	generation uint64
}

func NewRingManager(ctx *Context) *RingManager {
	return &RingManager{ctx: ctx}
}

// Create builds the first ring for the context's surface. A failure here is a configuration error
// and not recoverable.
func (m *RingManager) Create(extent Extent) (*SwapRing, error) {
	if extent.IsZero() {
		return nil, fmt.Errorf("create swap ring at %v: %w", extent, ErrZeroExtent)
	}
	sc, err := m.ctx.Device.CreateSwapchain(m.ctx.Surface, extent, nil)
	if err != nil {
		return nil, fmt.Errorf("create swap ring at %v: %w", extent, err)
	}
	r, err := m.wrap(sc)
	if err != nil {
		sc.Destroy()
		return nil, err
	}
	log.Printf("Created swap ring #%d: %d images, format %d, extent %v", r.Generation, r.Images, r.Format, r.Extent)
	return r, nil
}

// Recreate replaces old with a ring for newExtent on the same surface. old is destroyed once the
// replacement exists; the caller must make sure no submission still uses it. On failure old is left
// untouched.
func (m *RingManager) Recreate(old *SwapRing, newExtent Extent) (*SwapRing, error) {
	if newExtent.IsZero() {
		return nil, fmt.Errorf("recreate swap ring at %v: %w", newExtent, ErrZeroExtent)
	}
	var prev Swapchain
	if old != nil {
		prev = old.chain
	}
	sc, err := m.ctx.Device.CreateSwapchain(m.ctx.Surface, newExtent, prev)
	if err != nil {
		return nil, fmt.Errorf("recreate swap ring at %v: %w", newExtent, err)
	}
	r, err := m.wrap(sc)
	if err != nil {
		sc.Destroy()
		return nil, err
	}
	if old != nil {
		if r.Format != old.Format {
			log.Printf("Swap ring format changed on recreation: %d -> %d", old.Format, r.Format)
		}
		if r.Images != old.Images {
			log.Printf("Swap ring slot count changed on recreation: %d -> %d", old.Images, r.Images)
		}
		m.Destroy(old)
	}
	log.Printf("Recreated swap ring #%d: %d images, extent %v", r.Generation, r.Images, r.Extent)
	return r, nil
}

// AcquireNext asks the driver for the next writable slot. Out of date and suboptimal results come
// back as a stale Acquisition, not as an error: a suboptimal image is dropped rather than
// presented into a ring that no longer matches the surface.
func (m *RingManager) AcquireNext(r *SwapRing, timeout time.Duration) (Acquisition, error) {
	slot, sem, err := r.chain.Acquire(timeout)
	if err != nil {
		if IsStale(err) {
			return Acquisition{Stale: true, Suboptimal: isSuboptimal(err)}, nil
		}
		return Acquisition{}, fmt.Errorf("acquire from swap ring #%d: %w", r.Generation, err)
	}
	if !r.Valid(slot) {
		return Acquisition{}, fmt.Errorf("acquire from swap ring #%d: slot %d of %d: %w", r.Generation, slot, r.Images, ErrSlotOutOfRange)
	}
	return Acquisition{Slot: slot, Wait: sem}, nil
}

func (m *RingManager) Destroy(r *SwapRing) {
	if r == nil || r.chain == nil {
		return
	}
	r.chain.Destroy()
	r.chain = nil
}

func (m *RingManager) wrap(sc Swapchain) (*SwapRing, error) {
	n := sc.Images()
	if n < 2 {
		return nil, fmt.Errorf("swap ring with %d images: %w", n, ErrNoCompatibleSurface)
	}
	m.generation++
	return &SwapRing{
		chain:          sc,
		Images:         n,
		Format:         sc.Format(),
		Extent:         sc.Extent(),
		CompositeAlpha: sc.CompositeAlpha(),
		Generation:     m.generation,
	}, nil
}

func isSuboptimal(err error) bool {
	return errors.Is(err, ErrSuboptimal) && !errors.Is(err, ErrOutOfDate)
}
