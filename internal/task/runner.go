package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/metrics"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/queue"
	"github.com/phrazzld/suggestion-api/internal/redact"
)

// JobQueue is the part of queue.Queue the runner consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Delivery, error)
	Complete(ctx context.Context, id string, result any) error
	Fail(ctx context.Context, id string, cause error) (bool, error)
	RequeueStalled(ctx context.Context) (int64, error)
}

// JobProcessor executes one job.
type JobProcessor interface {
	Process(ctx context.Context, job domain.Job) (any, error)
}

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// PollInterval is how long an idle worker waits before polling again
	PollInterval time.Duration

	// JobTimeout bounds a single job execution
	JobTimeout time.Duration

	// StalledCheckInterval defines how often jobs with an expired lease
	// are returned to the queue
	StalledCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:          2,
		PollInterval:         time.Second,
		JobTimeout:           5 * time.Minute,
		StalledCheckInterval: time.Minute,
	}
}

// Runner manages background job processing
type Runner struct {
	queue      JobQueue
	processor  JobProcessor
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	started    bool
	mu         sync.Mutex
}

// NewRunner creates a new Runner
func NewRunner(q JobQueue, processor JobProcessor, config RunnerConfig, logger *slog.Logger) *Runner {
	defaults := DefaultRunnerConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.StalledCheckInterval <= 0 {
		config.StalledCheckInterval = defaults.StalledCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:      q,
		processor:  processor,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With(slog.String("component", "job_runner")),
	}
}

// Start begins processing jobs. Jobs left active by a previous run are
// requeued first.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runner already started")
	}

	if _, err := r.queue.RequeueStalled(r.ctx); err != nil {
		return fmt.Errorf("failed to recover stalled jobs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stalledJobMonitor()

	r.started = true
	r.logger.Info("job runner started", "worker_count", r.config.WorkerCount)
	return nil
}

// Stop stops polling and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

// worker polls the queue until the runner stops
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		if r.ctx.Err() != nil {
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		}

		d, err := r.queue.Dequeue(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				continue
			}
			r.logger.Error("failed to dequeue job", "worker_id", id, "error", redact.Error(err))
			r.sleep()
			continue
		}
		if d == nil {
			r.sleep()
			continue
		}

		r.processJob(d, id)
	}
}

func (r *Runner) sleep() {
	select {
	case <-r.ctx.Done():
	case <-time.After(r.config.PollInterval):
	}
}

// processJob handles execution of a single job. It runs to completion even
// when the runner is stopping so the job is not left active.
func (r *Runner) processJob(d *queue.Delivery, workerID int) {
	kind := string(d.Record.Kind)
	log := r.logger.With(
		"job_id", d.Record.ID,
		"job_kind", kind,
		"worker_id", workerID,
		"attempt", d.Record.AttemptsMade+1,
	)

	ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), log), r.config.JobTimeout)
	defer cancel()

	log.Info("processing job")
	start := time.Now()
	result, err := r.execute(ctx, d.Job)
	metrics.JobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("job execution failed", "error", redact.Error(err))
		retried, failErr := r.queue.Fail(context.Background(), d.Record.ID, err)
		if failErr != nil {
			log.Error("failed to record job failure", "error", failErr)
			return
		}
		outcome := metrics.OutcomeFailure
		if retried {
			outcome = metrics.OutcomeRetried
		}
		metrics.JobsProcessed.WithLabelValues(kind, outcome).Inc()
		return
	}

	if err := r.queue.Complete(context.Background(), d.Record.ID, result); err != nil {
		log.Error("failed to mark job completed", "error", err)
		return
	}
	metrics.JobsProcessed.WithLabelValues(kind, metrics.OutcomeSuccess).Inc()
	log.Info("job completed successfully", "duration_ms", time.Since(start).Milliseconds())
}

func (r *Runner) execute(ctx context.Context, job domain.Job) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return r.processor.Process(ctx, job)
}

// stalledJobMonitor periodically returns jobs whose lease expired, because
// their worker died or hung, to the wait set
func (r *Runner) stalledJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StalledCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			n, err := r.queue.RequeueStalled(r.ctx)
			if err != nil {
				if r.ctx.Err() == nil {
					r.logger.Error("failed to requeue stalled jobs", "error", redact.Error(err))
				}
				continue
			}
			if n > 0 {
				r.logger.Info("requeued stalled jobs", "count", n)
			}
		}
	}
}
