// Package workerpool runs metadata resolution on a fixed set of goroutines.
// Callers submit a Task and block for its Result; a failing or panicking
// task is reported in the Result and never takes a worker down.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/syncspace/internal/metrics"
	"github.com/sharetube/syncspace/internal/resolver"
)

var ErrPoolClosed = errors.New("worker pool closed")

type Config struct {
	Workers     int
	TaskTimeout time.Duration
	// DefaultSource is searched when a request names no source.
	DefaultSource resolver.Source
	// BatchParallelism bounds concurrent lookups inside one batch task.
	BatchParallelism int
}

type job struct {
	ctx  context.Context
	task *Task
	out  chan Result
}

type Pool struct {
	registry *resolver.Registry
	logger   *slog.Logger
	cfg      Config

	jobs      chan job
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	started   time.Time
	busy      atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

func New(registry *resolver.Registry, logger *slog.Logger, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 15 * time.Second
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = resolver.SourceYoutube
	}
	if cfg.BatchParallelism <= 0 {
		cfg.BatchParallelism = 4
	}

	p := &Pool{
		registry: registry,
		logger:   logger,
		cfg:      cfg,
		jobs:     make(chan job),
		quit:     make(chan struct{}),
		started:  time.Now(),
	}

	p.wg.Add(cfg.Workers)
	for i := 1; i <= cfg.Workers; i++ {
		go p.run(i)
	}

	return p
}

// Submit hands task to the next free worker and waits for its result. The
// returned error is only set when the task could not be run at all.
func (p *Pool) Submit(ctx context.Context, task Task) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	j := job{ctx: ctx, task: &task, out: make(chan Result, 1)}

	select {
	case p.jobs <- j:
	case <-p.quit:
		return Result{}, ErrPoolClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-j.out:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Health reports pool statistics without occupying a worker.
func (p *Pool) Health() Health {
	return Health{
		Workers:        p.cfg.Workers,
		Busy:           p.busy.Load(),
		Uptime:         time.Since(p.started),
		TasksProcessed: p.processed.Load(),
		TasksFailed:    p.failed.Load(),
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

func (p *Pool) run(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			j.out <- p.process(workerID, j)
		}
	}
}

func (p *Pool) process(workerID int, j job) Result {
	p.busy.Add(1)
	defer p.busy.Add(-1)

	start := time.Now()
	ctx, cancel := context.WithTimeout(j.ctx, p.cfg.TaskTimeout)
	defer cancel()

	data, err := p.safeExecute(ctx, j.task)

	res := Result{
		TaskID:         j.task.ID,
		Success:        err == nil,
		Data:           data,
		ProcessingTime: time.Since(start),
		WorkerID:       workerID,
		err:            err,
	}
	if err != nil {
		res.Error = err.Error()
		p.failed.Add(1)
		p.logger.InfoContext(ctx, "worker task failed",
			"task_id", j.task.ID, "type", j.task.Type, "worker_id", workerID, "error", err)
	}
	p.processed.Add(1)
	metrics.RecordWorkerTask(string(j.task.Type), res.Success, res.ProcessingTime)

	return res
}

func (p *Pool) safeExecute(ctx context.Context, task *Task) (data *ResultData, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data = nil
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()

	return p.execute(ctx, task)
}

func (p *Pool) execute(ctx context.Context, task *Task) (*ResultData, error) {
	switch task.Type {
	case TaskFetchTrack:
		track, err := p.fetchTrack(ctx, &task.Track)
		if err != nil {
			return nil, err
		}
		return &ResultData{Track: track}, nil
	case TaskVerifyAvailability:
		available, err := p.verifyAvailability(ctx, &task.Track)
		if err != nil {
			return nil, err
		}
		return &ResultData{Available: &available}, nil
	case TaskExtractMetadata:
		md, err := p.extractMetadata(&task.Track)
		if err != nil {
			return nil, err
		}
		return &ResultData{Metadata: md}, nil
	case TaskBatch:
		return &ResultData{Batch: p.batch(ctx, task.Batch)}, nil
	default:
		return nil, fmt.Errorf("unknown task type %q", task.Type)
	}
}
