package arxiv

import (
	"sync"

	"github.com/rs/zerolog"
)

// Pool runs background tasks on a fixed set of workers.
// Submit never blocks; Stop lets queued tasks finish.
type Pool struct {
	queue   chan func()
	workers int
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
	log     zerolog.Logger
}

// PoolConfig holds configuration for the pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// DefaultPoolConfig returns the defaults used when no config is given.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 2, QueueSize: 64}
}

// NewPool creates a pool. Call Start before submitting.
func NewPool(cfg PoolConfig, log zerolog.Logger) *Pool {
	def := DefaultPoolConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Pool{
		queue:   make(chan func(), cfg.QueueSize),
		workers: cfg.Workers,
		log:     log,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Debug().Int("workers", p.workers).Msg("conversion pool started")
}

// Stop stops accepting work and waits for queued tasks to finish.
// A pool that was never started runs its queued tasks on the caller.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	close(p.queue)
	p.mu.Unlock()

	if !started {
		for task := range p.queue {
			p.run(-1, task)
		}
	}
	p.wg.Wait()
	p.log.Debug().Msg("conversion pool stopped")
}

// Submit enqueues task. It returns ErrQueueFull when the queue is full
// or the pool has been stopped.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrQueueFull
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	task()
}
