package poller

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshGate_SequentialCallsEachRun(t *testing.T) {
	var g refreshGate
	var n int
	<-g.do(func() { n++ })
	<-g.do(func() { n++ })
	assert.Equal(t, 2, n)
}

func TestRefreshGate_CoalescesWhileRunning(t *testing.T) {
	var g refreshGate
	var runs, concurrent, maxConcurrent atomic.Int32
	release := make(chan struct{})

	fn := func() {
		c := concurrent.Add(1)
		if c > maxConcurrent.Load() {
			maxConcurrent.Store(c)
		}
		if runs.Add(1) == 1 {
			<-release
		}
		concurrent.Add(-1)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); <-g.do(fn) }()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	waiters := make([]<-chan struct{}, 3)
	for i := range waiters {
		waiters[i] = g.do(fn)
	}
	close(release)
	wg.Wait()
	for _, w := range waiters {
		<-w
	}

	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, int32(1), maxConcurrent.Load())
}

func TestRefreshGate_PanicReopensGate(t *testing.T) {
	var g refreshGate
	release := make(chan struct{})
	started := make(chan struct{})

	panicked := make(chan interface{}, 1)
	go func() {
		defer func() { panicked <- recover() }()
		g.do(func() {
			close(started)
			<-release
			panic("listener blew up")
		})
	}()
	<-started
	waiter := g.do(func() { t.Error("follow-up must not run after a panic") })
	close(release)

	assert.Equal(t, "listener blew up", <-panicked)
	select {
	case <-waiter:
	case <-time.After(time.Second):
		t.Fatal("waiter was never released")
	}

	var n int
	<-g.do(func() { n++ })
	assert.Equal(t, 1, n)
}
