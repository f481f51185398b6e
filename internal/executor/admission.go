package executor

import (
	"context"
	"errors"
	"time"
)

// ErrAdmissionTimeout is returned when no execution slot frees up within the
// configured wait. It fires before any execution record exists.
var ErrAdmissionTimeout = errors.New("timed out waiting for an execution slot")

// Admission is the process-wide concurrent-execution budget. Slots are not
// partitioned per config or schedule; the budget protects shared resources
// like driver connection pools and outbound bandwidth.
type Admission struct {
	slots chan struct{}
	wait  time.Duration
}

// NewAdmission creates a controller with the given capacity. Acquire blocks
// up to wait for a free slot.
func NewAdmission(capacity int, wait time.Duration) *Admission {
	if capacity <= 0 {
		capacity = 1
	}
	return &Admission{
		slots: make(chan struct{}, capacity),
		wait:  wait,
	}
}

// Acquire claims a slot, blocking until one frees, the wait timeout elapses
// (ErrAdmissionTimeout) or ctx is cancelled.
func (a *Admission) Acquire(ctx context.Context) error {
	select {
	case a.slots <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(a.wait)
	defer timer.Stop()
	select {
	case a.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrAdmissionTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. It must run on every exit path of an execution.
func (a *Admission) Release() {
	select {
	case <-a.slots:
	default:
	}
}

// InUse reports the number of currently held slots.
func (a *Admission) InUse() int { return len(a.slots) }

// Capacity reports the total slot count.
func (a *Admission) Capacity() int { return cap(a.slots) }
