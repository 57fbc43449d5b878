package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsBadWorkerCount(t *testing.T) {
	_, err := NewPool(0, 1)
	require.Error(t, err)
}

func TestSingleWorkerRunsTasksInSubmissionOrder(t *testing.T) {
	pool, err := NewPool(1, 16)
	require.NoError(t, err)
	defer pool.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
			mu.Lock()
			got = append(got, i)
			if len(got) == 5 {
				close(done)
			}
			mu.Unlock()
		}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not complete")
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestSubmitBackpressure(t *testing.T) {
	pool, err := NewPool(1, 1)
	require.NoError(t, err)
	defer pool.Close()

	release := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) { <-release }))

	// Fill the queue, then expect capacity errors.
	var saturated bool
	for i := 0; i < 10; i++ {
		if err := pool.Submit(context.Background(), func(context.Context) {}); err != nil {
			saturated = true
			break
		}
	}
	close(release)
	require.True(t, saturated)
}

func TestSubmitAfterCloseFails(t *testing.T) {
	pool, err := NewPool(1, 1)
	require.NoError(t, err)
	pool.Close()
	require.Error(t, pool.Submit(context.Background(), func(context.Context) {}))
}

func TestSubmitNilTaskFails(t *testing.T) {
	pool, err := NewPool(1, 1)
	require.NoError(t, err)
	defer pool.Close()
	require.Error(t, pool.Submit(context.Background(), nil))
}

func TestShutdownWaitsForInflightTasks(t *testing.T) {
	pool, err := NewPool(1, 1)
	require.NoError(t, err)

	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
	select {
	case <-finished:
	default:
		t.Fatal("shutdown returned before the in-flight task completed")
	}
}
