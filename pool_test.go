package arxiv

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	t.Parallel()
	p := NewPool(PoolConfig{Workers: 3, QueueSize: 16}, zerolog.Nop())
	p.Start()

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := p.Submit(func() { defer wg.Done(); n.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	p.Stop()
	if n.Load() != 10 {
		t.Errorf("ran %d tasks, want 10", n.Load())
	}
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	t.Parallel()
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 1}, zerolog.Nop())
	p.Start()
	defer p.Stop()

	release := make(chan struct{})
	running := make(chan struct{})
	if err := p.Submit(func() { close(running); <-release }); err != nil {
		t.Fatal(err)
	}
	<-running
	if err := p.Submit(func() {}); err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Submit(func() {}) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("Submit on full queue = %v, want ErrQueueFull", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	close(release)
}

func TestPoolStopDrainsQueue(t *testing.T) {
	t.Parallel()
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 8}, zerolog.Nop())
	p.Start()

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		p.Submit(func() { time.Sleep(time.Millisecond); n.Add(1) })
	}
	p.Stop()
	if n.Load() != 5 {
		t.Errorf("ran %d tasks before Stop returned, want 5", n.Load())
	}
	if err := p.Submit(func() {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit after Stop = %v, want ErrQueueFull", err)
	}
	p.Stop()
}

func TestPoolStopWithoutStartRunsQueued(t *testing.T) {
	t.Parallel()
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 4}, zerolog.Nop())

	var n atomic.Int32
	for i := 0; i < 3; i++ {
		if err := p.Submit(func() { n.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Submit(func() { panic("boom") })
	p.Stop()
	if n.Load() != 3 {
		t.Errorf("ran %d queued tasks, want 3", n.Load())
	}
}

func TestPoolSurvivesPanics(t *testing.T) {
	t.Parallel()
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 4}, zerolog.Nop())
	p.Start()

	ran := make(chan struct{})
	p.Submit(func() { panic("boom") })
	p.Submit(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
	p.Stop()
}
