// Package worker runs jobs on a fixed set of goroutines while keeping jobs
// that share a key in submission order.
package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("worker: pool closed")

// Job represents a unit of work to be executed by a worker.
type Job struct {
	// Key routes the job. Jobs with equal keys run one at a time, in order.
	Key string
	// Execute is the function to run. Its context ends with either the
	// submitter's context or the pool.
	Execute func(ctx context.Context) (any, error)
	// done receives the outcome when set.
	done chan Result
	ctx  context.Context
}

// Result represents the outcome of a job execution.
type Result struct {
	Key   string
	Value any
	Err   error
}

// KeyedPool routes each job to worker hash(key) % workers, so at most one job
// per key is in flight while different keys run in parallel.
type KeyedPool struct {
	queues []chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewKeyedPool starts workers goroutines, each with its own queue of
// queueSize jobs.
//
//	pool := worker.NewKeyedPool(ctx, 4, 64)
//	defer pool.Close()
//	v, err := pool.Do(ctx, poolID, func(ctx context.Context) (any, error) { ... })
func NewKeyedPool(ctx context.Context, workers, queueSize int) *KeyedPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	poolCtx, cancel := context.WithCancel(ctx)
	p := &KeyedPool{
		queues: make([]chan Job, workers),
		ctx:    poolCtx,
		cancel: cancel,
	}
	for i := range p.queues {
		p.queues[i] = make(chan Job, queueSize)
		p.wg.Add(1)
		go p.worker(p.queues[i])
	}
	return p
}

func (p *KeyedPool) worker(queue <-chan Job) {
	defer p.wg.Done()

	for job := range queue {
		res := p.run(job)
		if job.done != nil {
			job.done <- res
		}
	}
}

// run executes job unless its submitter or the pool has already given up.
func (p *KeyedPool) run(job Job) Result {
	if err := p.ctx.Err(); err != nil {
		return Result{Key: job.Key, Err: err}
	}
	parent := job.ctx
	if parent == nil {
		parent = context.Background()
	}
	if err := parent.Err(); err != nil {
		return Result{Key: job.Key, Err: err}
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	value, err := job.Execute(ctx)
	return Result{Key: job.Key, Value: value, Err: err}
}

// Submit queues job without waiting for it. It blocks while the key's queue
// is full. The job is skipped if ctx is done by the time a worker takes it.
func (p *KeyedPool) Submit(ctx context.Context, job Job) error {
	job.ctx = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.queues[p.index(job.Key)] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Do runs fn on the worker owning key and waits for its result. If ctx ends
// while the job is queued it never runs; if it ends mid-run fn sees the
// cancellation and its result is discarded.
func (p *KeyedPool) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	done := make(chan Result, 1)
	if err := p.Submit(ctx, Job{Key: key, Execute: fn, done: done}); err != nil {
		return nil, err
	}
	select {
	case res := <-done:
		return res.Value, res.Err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.Value, res.Err
		default:
		}
		return nil, ctx.Err()
	}
}

// Run is a typed wrapper over Do. Whatever fn returned comes back alongside
// its error.
func Run[T any](ctx context.Context, p *KeyedPool, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := p.Do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	t, _ := v.(T)
	return t, err
}

// Close stops accepting jobs, drains the queues and waits for the workers.
func (p *KeyedPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// Workers returns the number of workers in the pool.
func (p *KeyedPool) Workers() int {
	return len(p.queues)
}

// QueueLen returns the number of jobs waiting across all workers.
func (p *KeyedPool) QueueLen() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// WorkerFor reports which worker runs jobs for key.
func (p *KeyedPool) WorkerFor(key string) int {
	return p.index(key)
}

func (p *KeyedPool) index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}
