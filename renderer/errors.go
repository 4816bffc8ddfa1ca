package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfDate is returned by acquisition or presentation when the ring no longer matches
	// the surface.
	ErrOutOfDate = errors.New("swap ring out of date")
	// ErrSuboptimal is returned when an image could be acquired or presented but the ring should
	// be replaced. The presenter treats it exactly like ErrOutOfDate.
	ErrSuboptimal = errors.New("swap ring suboptimal")

	ErrZeroExtent          = errors.New("surface extent has zero area")
	ErrNoCompatibleSurface = errors.New("surface has no compatible format or extent")
	ErrDeviceLost          = errors.New("device lost")
	ErrWaitTimeout         = errors.New("timed out waiting for completion signal")
	ErrSlotCountChanged    = errors.New("ring slot count does not match per-slot state")
	ErrPipelineKind        = errors.New("frame programs require a graphics pipeline")
	ErrPersistentStale     = errors.New("swap ring stale again right after recreation")
	ErrNoPrograms          = errors.New("no frame programs recorded")
	ErrSlotOutOfRange      = errors.New("ring slot out of range")
	// ErrResourcesInUse is returned by Close when submissions are still pending after the drain.
	// The GPU may still read every object the presenter was built on.
	ErrResourcesInUse = errors.New("resources still in use by the device")
)

// IsStale reports whether err only means "recreate the ring and carry on".
func IsStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}

// FatalError terminates the presentation loop. Op names the step that failed.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("presenter: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(op string, err error) error {
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Op: op, Err: err}
}
