// Package dispatch provides the bounded worker pool that runs asynchronous API calls
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task represents a queued call
type Task struct {
	ID        string                          // Unique ID for the task
	Process   func(ctx context.Context) error // Function to execute
	Timestamp time.Time                       // When the task was created

	ctx  context.Context
	done chan struct{}
	once sync.Once
	err  error
}

// NewTask creates a new task bound to ctx. The task is skipped if ctx is done
// before a worker picks it up.
func NewTask(ctx context.Context, id string, process func(ctx context.Context) error) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Task{
		ID:        id,
		Process:   process,
		Timestamp: time.Now(),
		ctx:       ctx,
		done:      make(chan struct{}),
	}
}

// Done is closed once the task has finished, failed or been discarded
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's outcome. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Pool manages a fixed set of worker goroutines fed by a bounded queue
type Pool struct {
	tasks   chan *Task
	workers int
	wg      sync.WaitGroup
	quit    chan struct{}
	logger  *zap.Logger

	active map[string]*Task
	mu     sync.RWMutex

	closed  bool
	closeMu sync.RWMutex
}

// NewPool creates and starts a worker pool
func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := &Pool{
		tasks:   make(chan *Task, queueSize),
		workers: workers,
		quit:    make(chan struct{}),
		logger:  logger,
		active:  make(map[string]*Task),
	}
	pool.start()
	return pool
}

func (p *Pool) start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}
	p.logger.Debug("worker pool started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.tasks)))
}

// Stop stops accepting tasks, waits for running tasks to finish and fails
// everything still queued with ErrPoolClosed. Stop is idempotent.
func (p *Pool) Stop() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	p.closeMu.Unlock()

	close(p.quit)
	p.wg.Wait()

	discarded := 0
	for {
		select {
		case task := <-p.tasks:
			p.untrack(task)
			task.finish(ErrPoolClosed)
			discarded++
		default:
			p.logger.Debug("worker pool stopped", zap.Int("discarded", discarded))
			return
		}
	}
}

// Submit queues a task, blocking while the queue is full until ctx is done
func (p *Pool) Submit(ctx context.Context, task *Task) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.track(task)
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		p.untrack(task)
		return ctx.Err()
	}
}

// TrySubmit queues a task without blocking, failing with ErrQueueFull
func (p *Pool) TrySubmit(task *Task) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.track(task)
	select {
	case p.tasks <- task:
		return nil
	default:
		p.untrack(task)
		return ErrQueueFull
	}
}

// ActiveTasks returns the number of queued and running tasks
func (p *Pool) ActiveTasks() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.active)
}

// QueueLen returns the number of tasks waiting for a worker
func (p *Pool) QueueLen() int {
	return len(p.tasks)
}

func (p *Pool) track(task *Task) {
	p.mu.Lock()
	p.active[task.ID] = task
	p.mu.Unlock()
}

func (p *Pool) untrack(task *Task) {
	p.mu.Lock()
	delete(p.active, task.ID)
	p.mu.Unlock()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		// quit wins over queued work
		select {
		case <-p.quit:
			return
		default:
		}

		select {
		case <-p.quit:
			return
		case task := <-p.tasks:
			p.run(id, task)
		}
	}
}

func (p *Pool) run(worker int, task *Task) {
	defer p.untrack(task)

	if err := task.ctx.Err(); err != nil {
		task.finish(err)
		return
	}

	start := time.Now()
	err := task.Process(task.ctx)
	if err != nil {
		p.logger.Debug("task failed", zap.Int("worker", worker), zap.String("task", task.ID),
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
	task.finish(err)
}

// FailedTask returns a task that has already finished with err. It stands in
// for tasks that could not be queued.
func FailedTask(id string, err error) *Task {
	task := NewTask(context.Background(), id, nil)
	task.finish(err)
	return task
}
