// Package worker runs queued matching jobs and records their outcome.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rumbo/drivermatch/internal/adapters/mq/publisher"
	"github.com/rumbo/drivermatch/internal/adapters/mq/queue"
	"github.com/rumbo/drivermatch/internal/adapters/repository"
	"github.com/rumbo/drivermatch/internal/domain/matching"
	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/result"
	"github.com/rumbo/drivermatch/pkg/logger"
	"github.com/rumbo/drivermatch/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrStopped is recorded for jobs still queued when the pool stops.
var ErrStopped = errors.New("worker stopped")

// Runner executes the matching pipeline.
type Runner interface {
	Run(ctx context.Context, drivers []model.RawDriver, routes []model.RawRoute) (*matching.Outcome, error)
}

// Recorder stores run state transitions.
type Recorder interface {
	MarkRunning(ctx context.Context, id string, at time.Time) error
	Complete(ctx context.Context, id string, out repository.Outcome, at time.Time) error
	Fail(ctx context.Context, id, reason, message string, at time.Time) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes or it is stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker runs one job at a time.
type InMemoryWorker struct {
	queue      Queue
	runner     Runner
	recorder   Recorder
	publisher  publisher.Publisher
	name       string
	timeout    time.Duration
	topMatches int

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, runner Runner, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		runner:     runner,
		recorder:   recorder,
		publisher:  publisher.Nop{},
		name:       "worker",
		topMatches: result.DefaultTopMatches,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run consumes jobs until the queue closes, ctx ends or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Warn(ctx, "run failed",
					logger.String("run_id", job.RunID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job. Store writes are detached from ctx so a timed out
// or cancelled run is still recorded.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: jobs travel by value
	metrics.AddWorkerBusy(1)
	defer metrics.AddWorkerBusy(-1)

	store := context.WithoutCancel(ctx)
	if err := w.recorder.MarkRunning(store, job.RunID, time.Now().UTC()); err != nil {
		metrics.RecordErrorByComponent("worker", "store")
		return fmt.Errorf("mark run %s running: %w", job.RunID, err)
	}

	runCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := w.runner.Run(runCtx, job.Drivers, job.Routes)
	if err != nil {
		reason := matching.Reason(err)
		metrics.RecordRunError(reason)
		metrics.RecordRunCompleted(string(repository.StatusFailed))
		metrics.RecordErrorByComponent("worker", reason)
		if ferr := w.recorder.Fail(store, job.RunID, reason, err.Error(), time.Now().UTC()); ferr != nil {
			return errors.Join(err, fmt.Errorf("record failure of %s: %w", job.RunID, ferr))
		}
		return err
	}

	var report bytes.Buffer
	if err := result.WriteReport(&report, out.Summary, out.Assignments, w.topMatches); err != nil {
		return fmt.Errorf("render report of %s: %w", job.RunID, err)
	}

	err = w.recorder.Complete(store, job.RunID, repository.Outcome{
		Summary:     out.Summary,
		Timings:     timingsMS(out.Timings),
		Assignments: out.Assignments,
		Report:      report.String(),
	}, time.Now().UTC())
	if err != nil {
		metrics.RecordErrorByComponent("worker", "store")
		metrics.RecordRunCompleted(string(repository.StatusFailed))
		return fmt.Errorf("store run %s: %w", job.RunID, err)
	}
	metrics.RecordRunCompleted(string(repository.StatusSucceeded))

	w.logger.Info(ctx, "run succeeded",
		logger.String("run_id", job.RunID),
		logger.String("algorithm", string(out.Algorithm)),
		logger.Int("assigned", out.Summary.Assigned),
		logger.Float64("total_weight", out.Summary.TotalWeight),
		logger.Duration("elapsed", time.Since(start)),
	)

	// Publication failures do not fail the run; the result is already stored.
	_ = w.publisher.Publish(store, publisher.Message{
		RunID:       job.RunID,
		Algorithm:   string(out.Algorithm),
		Summary:     out.Summary,
		Assignments: out.Assignments,
	})
	return nil
}

func timingsMS(t matching.Timings) repository.Timings {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return repository.Timings{
		NormalizeMS: ms(t.Normalize),
		BuildMS:     ms(t.Build),
		SolveMS:     ms(t.Solve),
		AssembleMS:  ms(t.Assemble),
	}
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	recorder Recorder

	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger logger.Logger
}

// NewPool creates workerCount workers sharing opts.
func NewPool(workerCount int, q Queue, runner Runner, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		recorder: recorder,
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, runner, recorder, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches all workers. Cancelling ctx aborts in-flight runs.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and lets workers drain it. If ctx ends first,
// in-flight runs are cancelled and jobs left in the queue are marked failed.
func (p *Pool) Shutdown(ctx context.Context) error {
	closer, closable := p.queue.(interface{ Close() error })
	if closable {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-shutdownCtx.Done():
	}

	p.logger.Warn(ctx, "worker pool shutdown timed out, cancelling runs")
	if p.cancel != nil {
		p.cancel()
	}
	<-drained
	if !closable {
		return shutdownCtx.Err()
	}

	store := context.WithoutCancel(ctx)
	for job := range p.queue.Dequeue(store) {
		_ = p.recorder.Fail(store, job.RunID, matching.Reason(context.Canceled), ErrStopped.Error(), time.Now().UTC())
		metrics.RecordRunCompleted(string(repository.StatusFailed))
	}
	return shutdownCtx.Err()
}
