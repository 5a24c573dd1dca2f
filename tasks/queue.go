// Package tasks is an in-process, at-least-once task queue with bounded retries.
package tasks

import (
	"context"
	"errors"
	"evcentral/internal"
	"evcentral/metrics/counters"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"
)

var (
	ErrClosed      = errors.New("task queue closed")
	ErrFull        = errors.New("task queue full")
	ErrUnknownTask = errors.New("unknown task")
)

// Handler runs one task; a returned error schedules a retry until attempts run out.
type Handler func(ctx context.Context, args []string) error

type Task struct {
	Id      string
	Name    string
	Args    []string
	Attempt int
}

type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	// Rate is the number of task executions allowed per second, 0 means unlimited.
	Rate float64
}

type Queue struct {
	opts     Options
	handlers map[string]Handler
	tasks    chan *Task
	stop     chan struct{}
	limiter  *rate.Limiter
	logger   internal.LogHandler
	mux      sync.RWMutex
	closed   bool
	started  bool
	wg       sync.WaitGroup
	idMux    sync.Mutex
	entropy  *ulid.MonotonicEntropy
}

func New(opts Options, logger internal.LogHandler) *Queue {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 100
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Workers
	now := time.Now()
	return &Queue{
		opts:     opts,
		handlers: make(map[string]Handler),
		tasks:    make(chan *Task, opts.QueueSize),
		stop:     make(chan struct{}),
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}
}

// Register binds a task name to its handler; call before Start.
func (q *Queue) Register(name string, handler Handler) {
	q.mux.Lock()
	defer q.mux.Unlock()
	q.handlers[name] = handler
}

func (q *Queue) Start() {
	q.mux.Lock()
	defer q.mux.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *Queue) Enqueue(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mux.RLock()
	defer q.mux.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if _, ok := q.handlers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	task := &Task{Id: q.newId(), Name: name, Args: append([]string(nil), args...)}
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("%w: %s dropped", ErrFull, name)
	}
}

// Close stops accepting tasks, lets the workers drain what is already buffered and
// waits for them. Retries still waiting for their backoff are abandoned.
func (q *Queue) Close() {
	q.mux.Lock()
	if q.closed {
		q.mux.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	close(q.tasks)
	q.mux.Unlock()
	q.wg.Wait()
}

func (q *Queue) newId() string {
	q.idMux.Lock()
	defer q.idMux.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), q.entropy).String()
}

func (q *Queue) handler(name string) Handler {
	q.mux.RLock()
	defer q.mux.RUnlock()
	return q.handlers[name]
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.run(task)
	}
}

func (q *Queue) run(task *Task) {
	handler := q.handler(task.Name)
	for {
		if err := q.limiter.Wait(context.Background()); err != nil {
			q.logger.Error(fmt.Sprintf("task %s %s: rate limiter", task.Name, task.Id), err)
		}
		err := execute(handler, task)
		if err == nil {
			counters.CountTask(task.Name, "ok")
			return
		}
		task.Attempt++
		if task.Attempt >= q.opts.MaxAttempts {
			counters.CountTask(task.Name, "failed")
			q.logger.Error(fmt.Sprintf("task %s %s failed after %d attempts", task.Name, task.Id, task.Attempt), err)
			return
		}
		counters.CountTask(task.Name, "retry")
		delay := q.opts.BaseDelay * time.Duration(1<<(task.Attempt-1))
		q.logger.Warn(fmt.Sprintf("task %s %s attempt %d: %s; retry in %v", task.Name, task.Id, task.Attempt, err, delay))
		select {
		case <-time.After(delay):
		case <-q.stop:
			q.logger.Warn(fmt.Sprintf("task %s %s: queue closed, retry abandoned", task.Name, task.Id))
			return
		}
	}
}

func execute(handler Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTask, task.Name)
	}
	return handler(context.Background(), task.Args)
}
