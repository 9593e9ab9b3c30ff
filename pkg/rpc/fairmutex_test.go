package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFairMutexGrantsFIFOOrder(t *testing.T) {
	var m fairMutex
	m.Lock()

	const n = 5
	order := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			// Stagger goroutine startup so Lock calls queue in order; this is
			// inherently best-effort, but a large enough gap makes flakes rare.
			time.Sleep(time.Duration(i) * 5 * time.Millisecond)
			m.Lock()
			order <- i
			m.Unlock()
		}()
	}
	// Let all goroutines queue behind the held lock before releasing it.
	time.Sleep(50 * time.Millisecond)
	m.Unlock()

	var got []int
	for i := 0; i < n; i++ {
		got = append(got, <-order)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestFairMutexUnlockWithNoWaitersReleases(t *testing.T) {
	var m fairMutex
	m.Lock()
	m.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		m.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after Unlock with no waiters")
	}
}
