package sharedstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	t.Parallel()

	s := NewStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("k", "v1")
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	s.Set("k", "v2")
	v, ok = s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)

	s.Delete("k")
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestIncrAndCounter(t *testing.T) {
	t.Parallel()

	s := NewStore()
	assert.Equal(t, int64(0), s.GetCounter("hits"))

	assert.Equal(t, int64(1), s.Incr("hits", 1))
	assert.Equal(t, int64(3), s.Incr("hits", 2))
	assert.Equal(t, int64(3), s.GetCounter("hits"))

	assert.Equal(t, int64(2), s.Incr("hits", -1))
}

func TestIncrConcurrent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Incr("n", 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), s.GetCounter("n"))
}

func TestWaitForKeyUnblocksOnSet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	done := make(chan error, 1)
	go func() {
		done <- s.WaitForKey(context.Background(), "ready")
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("WaitForKey returned before Set")
	default:
	}

	s.Set("ready", true)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForKey did not unblock after Set")
	}
}

func TestWaitForKeyRespectsContext(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.WaitForKey(ctx, "never")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBarrierWaitReleasesAllParties(t *testing.T) {
	t.Parallel()

	s := NewStore()
	const parties = 5

	var wg sync.WaitGroup
	errs := make([]error, parties)
	for i := 0; i < parties; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.BarrierWait(context.Background(), "rendezvous", parties)
		}(i)
	}

	waitTimeout(t, &wg, time.Second)
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestBarrierWaitReusable(t *testing.T) {
	t.Parallel()

	s := NewStore()
	const parties = 3

	for round := 0; round < 3; round++ {
		var wg sync.WaitGroup
		for i := 0; i < parties; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.BarrierWait(context.Background(), "loop", parties))
			}()
		}
		waitTimeout(t, &wg, time.Second)
	}
}

func TestBarrierWaitMismatch(t *testing.T) {
	t.Parallel()

	s := NewStore()
	done := make(chan struct{})
	go func() {
		_ = s.BarrierWait(context.Background(), "mismatch", 2)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	err := s.BarrierWait(context.Background(), "mismatch", 3)
	assert.ErrorIs(t, err, ErrBarrierMismatch)

	// Unblock the first goroutine's barrier so the test can exit cleanly.
	go func() { _ = s.BarrierWait(context.Background(), "mismatch", 2) }()
	<-done
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for goroutines")
	}
}
