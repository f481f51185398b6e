package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdmissionAcquireRelease(t *testing.T) {
	t.Parallel()

	a := NewAdmission(2, time.Second)
	require.Equal(t, 2, a.Capacity())

	require.NoError(t, a.Acquire(context.Background()))
	require.NoError(t, a.Acquire(context.Background()))
	require.Equal(t, 2, a.InUse())

	a.Release()
	require.Equal(t, 1, a.InUse())
}

func TestAdmissionTimeout(t *testing.T) {
	t.Parallel()

	a := NewAdmission(1, 20*time.Millisecond)
	require.NoError(t, a.Acquire(context.Background()))

	err := a.Acquire(context.Background())
	require.ErrorIs(t, err, ErrAdmissionTimeout)
}

func TestAdmissionBlocksUntilSlotFrees(t *testing.T) {
	t.Parallel()

	a := NewAdmission(1, 5*time.Second)
	require.NoError(t, a.Acquire(context.Background()))

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	a.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
	wg.Wait()
}

func TestAdmissionContextCancellation(t *testing.T) {
	t.Parallel()

	a := NewAdmission(1, 5*time.Second)
	require.NoError(t, a.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := a.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
