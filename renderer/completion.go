package renderer

import (
	"errors"
	"fmt"
	"time"
)

// CompletionTracker holds the FenceTable: per ring slot, the completion signal of the most recent
// submission that targeted it, nil until the slot has been submitted to. It is only touched from
// the presentation loop.
type CompletionTracker struct {
	table []Signal
	// Superseded signals that had not fired yet when they were replaced. Released on the next drain.
	retired []Signal
}

// NewCompletionTracker returns a tracker with n empty entries.
func NewCompletionTracker(n int) *CompletionTracker {
	return &CompletionTracker{table: make([]Signal, n)}
}

// Len is the slot count the table is sized for.
func (t *CompletionTracker) Len() int {
	return len(t.table)
}

// Pending counts entries holding a signal.
func (t *CompletionTracker) Pending() int {
	n := 0
	for _, sig := range t.table {
		if sig != nil {
			n++
		}
	}
	return n
}

// Entry returns the signal recorded for slot, nil if none.
func (t *CompletionTracker) Entry(slot Slot) Signal {
	if int(slot) >= len(t.table) {
		return nil
	}
	return t.table[slot]
}

// WaitIfPending blocks until the last submission to slot completed. A slot that was never
// submitted to returns at once. Past timeout the wait fails with ErrWaitTimeout, which the caller
// treats as fatal.
func (t *CompletionTracker) WaitIfPending(slot Slot, timeout time.Duration) error {
	if int(slot) >= len(t.table) {
		return fmt.Errorf("wait on slot %d of %d: %w", slot, len(t.table), ErrSlotOutOfRange)
	}
	sig := t.table[slot]
	if sig == nil {
		return nil
	}
	if err := sig.Wait(timeout); err != nil {
		return fmt.Errorf("wait on slot %d: %w", slot, err)
	}
	return nil
}

// RecordSubmission stores sig as the latest signal of slot. The replaced signal is not waited on;
// it is released right away if it already fired and otherwise kept until the next drain.
func (t *CompletionTracker) RecordSubmission(slot Slot, sig Signal) error {
	if int(slot) >= len(t.table) {
		return fmt.Errorf("record submission on slot %d of %d: %w", slot, len(t.table), ErrSlotOutOfRange)
	}
	if old := t.table[slot]; old != nil && old != sig {
		t.retire(old)
	}
	t.table[slot] = sig
	return nil
}

// Chain returns the signal the next submission must be gated on: the one recorded for prev, or
// Immediate if prev was never submitted or no longer exists in the table.
func (t *CompletionTracker) Chain(prev Slot) Signal {
	if int(prev) >= len(t.table) || t.table[prev] == nil {
		return Immediate
	}
	return t.table[prev]
}

// Drain waits on every recorded signal, then releases all of them and clears the table. Every
// entry is waited on even if an earlier one fails; the errors are joined. Entries whose wait
// failed are kept so a later drain can retry.
func (t *CompletionTracker) Drain(timeout time.Duration) error {
	var errs []error
	for slot, sig := range t.table {
		if sig == nil {
			continue
		}
		if err := sig.Wait(timeout); err != nil {
			errs = append(errs, fmt.Errorf("drain slot %d: %w", slot, err))
			continue
		}
		sig.Release()
		t.table[slot] = nil
	}
	retired := t.retired[:0]
	for _, sig := range t.retired {
		if err := sig.Wait(timeout); err != nil {
			errs = append(errs, fmt.Errorf("drain superseded signal: %w", err))
			retired = append(retired, sig)
			continue
		}
		sig.Release()
	}
	t.retired = retired
	return errors.Join(errs...)
}

// Reset resizes the table to n empty entries. It must only follow a successful Drain, since the
// entries it discards are not waited on.
func (t *CompletionTracker) Reset(n int) error {
	if t.Pending() != 0 || len(t.retired) != 0 {
		return fmt.Errorf("reset fence table to %d slots with %d pending: %w", n, t.Pending(), ErrSlotCountChanged)
	}
	if n == len(t.table) {
		return nil
	}
	t.table = make([]Signal, n)
	return nil
}

func (t *CompletionTracker) retire(sig Signal) {
	if sig == Immediate {
		return
	}
	done, err := sig.Signaled()
	if err == nil && done {
		sig.Release()
		return
	}
	t.retired = append(t.retired, sig)
}
