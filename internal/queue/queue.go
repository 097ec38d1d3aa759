package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/metrics"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/redact"
	goredis "github.com/redis/go-redis/v9"
)

// Priorities. Lower values are dequeued first.
const (
	PriorityHigh   = 1
	PriorityNormal = 5
	PriorityLow    = 9
)

// priorityWeight spaces priorities so insertion order breaks ties.
const priorityWeight = 1e12

// Default tuning.
const (
	DefaultLeaseDuration    = 5 * time.Minute
	DefaultMaxStalledCount  = 1
	DefaultRemoveOnComplete = 100
	DefaultRemoveOnFail     = 500
)

// StalledReason is recorded on jobs failed for stalling too often.
const StalledReason = "job stalled more than allowed limit"

var (
	// ErrJobNotActive is returned when completing or failing a job this
	// worker no longer holds, typically because its lease expired.
	ErrJobNotActive = errors.New("job is not active")

	// ErrJobNotFound is returned when a job record is missing.
	ErrJobNotFound = errors.New("job not found")
)

// State is the position of a job in its lifecycle.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// States lists every state in lifecycle order.
var States = []State{StateWaiting, StateActive, StateDelayed, StateCompleted, StateFailed}

// Options tunes a Queue.
type Options struct {
	// Retry decides retries of failed jobs. Defaults to DefaultRetryPolicy.
	Retry RetryPolicy

	// LeaseDuration is how long a dequeued job may run before it is
	// considered stalled.
	LeaseDuration time.Duration

	// MaxStalledCount is how many times a job may stall before it is moved
	// to failed. Zero means DefaultMaxStalledCount; negative never fails.
	MaxStalledCount int

	// RemoveOnComplete and RemoveOnFail cap how many finished jobs are kept.
	// Negative values keep everything.
	RemoveOnComplete int64
	RemoveOnFail     int64

	// Now overrides the clock.
	Now func() time.Time
}

// AddOptions tunes a single job.
type AddOptions struct {
	// Priority defaults to PriorityNormal.
	Priority int

	// Delay postpones the first run.
	Delay time.Duration

	// Attempts overrides the retry policy's maximum.
	Attempts int
}

// Record is the stored state of a job.
type Record struct {
	ID           string          `json:"id"`
	Kind         domain.JobKind  `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	Priority     int             `json:"priority"`
	State        State           `json:"state"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	StalledCount int             `json:"stalled_count,omitempty"`
	FailedReason string          `json:"failed_reason,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// Delivery is a dequeued job held by one worker until it completes or fails.
type Delivery struct {
	Record *Record
	Job    domain.Job
}

// Queue is a durable, Redis-backed job queue. Delivery is at least once:
// a job whose worker dies is requeued by RequeueStalled after its lease
// expires.
type Queue struct {
	name    string
	client  goredis.Cmdable
	retry   RetryPolicy
	lease   time.Duration
	stalls  int
	keepOK  int64
	keepBad int64
	now     func() time.Time
	keys    keys
	logger  *slog.Logger
}

type keys struct {
	wait, active, delayed, completed, failed string
	paused, seq, repeat, jobPrefix           string
}

func newKeys(name string) keys {
	prefix := "queue:" + name + ":"
	return keys{
		wait:      prefix + "wait",
		active:    prefix + "active",
		delayed:   prefix + "delayed",
		completed: prefix + "completed",
		failed:    prefix + "failed",
		paused:    prefix + "paused",
		seq:       prefix + "seq",
		repeat:    prefix + "repeat",
		jobPrefix: prefix + "job:",
	}
}

func (k keys) set(s State) (string, error) {
	switch s {
	case StateWaiting:
		return k.wait, nil
	case StateActive:
		return k.active, nil
	case StateDelayed:
		return k.delayed, nil
	case StateCompleted:
		return k.completed, nil
	case StateFailed:
		return k.failed, nil
	default:
		return "", fmt.Errorf("%w: unknown job state %q", domain.ErrValidation, s)
	}
}

// New creates a queue called name.
func New(name string, client goredis.Cmdable, logger *slog.Logger, opts Options) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: queue name cannot be empty", domain.ErrValidation)
	}
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retry == nil {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.LeaseDuration <= 0 {
		opts.LeaseDuration = DefaultLeaseDuration
	}
	if opts.MaxStalledCount == 0 {
		opts.MaxStalledCount = DefaultMaxStalledCount
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Queue{
		name:    name,
		client:  client,
		retry:   opts.Retry,
		lease:   opts.LeaseDuration,
		stalls:  opts.MaxStalledCount,
		keepOK:  opts.RemoveOnComplete,
		keepBad: opts.RemoveOnFail,
		now:     opts.Now,
		keys:    newKeys(name),
		logger:  logger.With(slog.String("component", "queue"), slog.String("queue", name)),
	}, nil
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Add validates and enqueues job, returning its ID.
func (q *Queue) Add(ctx context.Context, job domain.Job, opts AddOptions) (string, error) {
	kind, payload, err := domain.EncodeJob(job)
	if err != nil {
		return "", err
	}

	priority := opts.Priority
	if priority <= 0 {
		priority = PriorityNormal
	}
	maxAttempts := opts.Attempts
	if maxAttempts <= 0 {
		maxAttempts = q.retry.MaxAttempts()
	}

	seq, err := q.client.Incr(ctx, q.keys.seq).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate job sequence: %w", err)
	}

	id := uuid.NewString()
	now := q.now()
	waitScore := float64(priority)*priorityWeight + float64(seq)

	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, q.keys.jobPrefix+id,
			"id", id,
			"kind", string(kind),
			"payload", string(payload),
			"priority", priority,
			"attempts_made", 0,
			"max_attempts", maxAttempts,
			"created_at", now.UnixMilli(),
			"wait_score", strconv.FormatFloat(waitScore, 'f', 0, 64),
		)
		if opts.Delay > 0 {
			pipe.HSet(ctx, q.keys.jobPrefix+id, "state", string(StateDelayed))
			pipe.ZAdd(ctx, q.keys.delayed, goredis.Z{Score: float64(now.Add(opts.Delay).UnixMilli()), Member: id})
		} else {
			pipe.HSet(ctx, q.keys.jobPrefix+id, "state", string(StateWaiting))
			pipe.ZAdd(ctx, q.keys.wait, goredis.Z{Score: waitScore, Member: id})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", kind, err)
	}

	metrics.JobsEnqueued.WithLabelValues(string(kind)).Inc()
	logger.FromContextOrDefault(ctx, q.logger).Debug("job enqueued",
		slog.String("job_id", id),
		slog.String("job_kind", string(kind)),
		slog.Int("priority", priority))
	return id, nil
}

// Dequeue claims the next job. It returns nil without error when the queue
// is empty or paused. Jobs whose payload no longer decodes are failed
// without retry and skipped.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		now := q.now()
		id, err := dequeueScript.Run(ctx, q.client,
			[]string{q.keys.wait, q.keys.active, q.keys.delayed, q.keys.paused},
			now.UnixMilli(), now.Add(q.lease).UnixMilli(), q.keys.jobPrefix,
		).Text()
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		rec, err := q.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		job, err := domain.DecodeJob(rec.Kind, rec.Payload)
		if err != nil {
			q.logger.Error("discarding undecodable job",
				slog.String("job_id", id),
				slog.String("job_kind", string(rec.Kind)),
				slog.String("error", err.Error()))
			if _, failErr := q.Fail(ctx, id, Unrecoverable(err)); failErr != nil {
				return nil, failErr
			}
			continue
		}

		return &Delivery{Record: rec, Job: job}, nil
	}
}

// Complete moves an active job to completed and stores its result.
func (q *Queue) Complete(ctx context.Context, id string, result any) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode job result: %w", err)
	}

	now := q.now().UnixMilli()
	n, err := finishScript.Run(ctx, q.client,
		[]string{q.keys.active, q.keys.completed},
		id, now, string(StateCompleted), q.keepOK, q.keys.jobPrefix, now, "result", string(body),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", id, err)
	}
	if n == 0 {
		return ErrJobNotActive
	}
	return nil
}

// Fail records cause against an active job. The job is scheduled for
// another attempt per the retry policy, or moved to failed when attempts
// are exhausted or cause is unrecoverable. It reports whether a retry was
// scheduled.
func (q *Queue) Fail(ctx context.Context, id string, cause error) (retried bool, err error) {
	rec, err := q.Get(ctx, id)
	if err != nil {
		return false, err
	}

	reason := "unknown error"
	if cause != nil {
		reason = redact.Error(cause)
	}

	attempt := rec.AttemptsMade + 1
	now := q.now()
	target, state, score := q.keys.failed, StateFailed, now.UnixMilli()
	keep := q.keepBad
	if !isUnrecoverable(cause) && attempt < rec.MaxAttempts {
		retried = true
		target, state = q.keys.delayed, StateDelayed
		score = now.Add(q.retry.Delay(attempt)).UnixMilli()
		keep = -1
	}

	n, err := finishScript.Run(ctx, q.client,
		[]string{q.keys.active, target},
		id, score, string(state), keep, q.keys.jobPrefix, now.UnixMilli(), "failed_reason", reason,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to record failure of job %s: %w", id, err)
	}
	if n == 0 {
		return false, ErrJobNotActive
	}

	q.logger.Debug("job failed",
		slog.String("job_id", id),
		slog.Int("attempt", attempt),
		slog.Bool("retry_scheduled", retried))
	return retried, nil
}

// RequeueStalled returns active jobs whose lease has expired to the wait
// set and reports how many were moved. Jobs past the stall limit are moved
// to failed with StalledReason and are not counted.
func (q *Queue) RequeueStalled(ctx context.Context) (int64, error) {
	maxStalls := int64(q.stalls)
	if maxStalls < 0 {
		maxStalls = -1
	}
	moved, err := requeueStalledScript.Run(ctx, q.client,
		[]string{q.keys.active, q.keys.wait, q.keys.failed},
		q.now().UnixMilli(), q.keys.jobPrefix, maxStalls, q.keepBad, StalledReason,
	).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stalled jobs: %w", err)
	}
	if len(moved) != 2 {
		return 0, fmt.Errorf("failed to requeue stalled jobs: unexpected reply %v", moved)
	}

	requeued, failed := moved[0], moved[1]
	if requeued > 0 {
		q.logger.Warn("requeued stalled jobs", slog.Int64("count", requeued))
	}
	if failed > 0 {
		q.logger.Error("failed jobs that stalled too often",
			slog.Int64("count", failed),
			slog.Int("max_stalled_count", q.stalls))
	}
	return requeued, nil
}

// Get loads one job record.
func (q *Queue) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := q.client.HGetAll(ctx, q.keys.jobPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return parseRecord(fields), nil
}

func parseRecord(f map[string]string) *Record {
	rec := &Record{
		ID:           f["id"],
		Kind:         domain.JobKind(f["kind"]),
		Payload:      json.RawMessage(f["payload"]),
		State:        State(f["state"]),
		FailedReason: f["failed_reason"],
		Priority:     atoi(f["priority"]),
		AttemptsMade: atoi(f["attempts_made"]),
		MaxAttempts:  atoi(f["max_attempts"]),
		StalledCount: atoi(f["stalled_count"]),
		CreatedAt:    millis(f["created_at"]),
	}
	if r := f["result"]; r != "" {
		rec.Result = json.RawMessage(r)
	}
	if v := f["processed_at"]; v != "" {
		t := millis(v)
		rec.ProcessedAt = &t
	}
	if v := f["finished_at"]; v != "" {
		t := millis(v)
		rec.FinishedAt = &t
	}
	return rec
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
