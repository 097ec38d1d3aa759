package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/queue"
)

// ControlledQueue is the operator surface of a queue. *queue.Queue
// implements it.
type ControlledQueue interface {
	Name() string
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	IsPaused(ctx context.Context) (bool, error)
	Counts(ctx context.Context) (queue.Counts, error)
	Clean(ctx context.Context, state queue.State) (int64, error)
	Obliterate(ctx context.Context) (int64, error)
	Repeatables(ctx context.Context) ([]queue.Repeatable, error)
	RemoveRepeatable(ctx context.Context, key string) (bool, error)
}

// QueueStats is a snapshot of one queue.
type QueueStats struct {
	Name      string `json:"name"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Delayed   int64  `json:"delayed"`
	Paused    bool   `json:"paused"`
}

// ClearResult reports what ClearAll removed. RemovedSchedules holds the
// keys of the repeatable schedules that were deleted; their cron entries
// stay disabled until the process registers them again on start.
type ClearResult struct {
	Removed          int64    `json:"removed"`
	UsedFallback     bool     `json:"used_fallback"`
	RemovedSchedules []string `json:"removed_schedules,omitempty"`
}

// clearOrder is the state order of the fallback clear. Sets that feed
// others go first so a job moving mid-clear lands in a set not yet
// cleaned.
var clearOrder = []queue.State{
	queue.StateDelayed,
	queue.StateWaiting,
	queue.StateActive,
	queue.StateCompleted,
	queue.StateFailed,
}

// QueueControlService provides operator controls over the job queues
type QueueControlService interface {
	// Stats returns a snapshot of every queue ordered by name.
	Stats(ctx context.Context) ([]QueueStats, error)

	// Pause stops workers from taking jobs from the named queue.
	Pause(ctx context.Context, name string) error

	// Resume lets workers take jobs from the named queue again.
	Resume(ctx context.Context, name string) error

	// ClearAll removes every job and repeatable schedule from the named
	// queue. The queue's paused state is the same afterwards.
	ClearAll(ctx context.Context, name string) (ClearResult, error)

	// ClearFailed removes the named queue's failed jobs.
	ClearFailed(ctx context.Context, name string) (int64, error)

	// ClearCompleted removes the named queue's completed jobs.
	ClearCompleted(ctx context.Context, name string) (int64, error)
}

type queueControlServiceImpl struct {
	queues map[string]ControlledQueue
	names  []string
	logger *slog.Logger
}

// NewQueueControlService creates a QueueControlService over queues.
func NewQueueControlService(queues []ControlledQueue, logger *slog.Logger) (QueueControlService, error) {
	if len(queues) == 0 {
		return nil, fmt.Errorf("%w: at least one queue is required", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &queueControlServiceImpl{
		queues: make(map[string]ControlledQueue, len(queues)),
		logger: logger.With(slog.String("component", "queue_control")),
	}
	for _, q := range queues {
		if q == nil {
			return nil, fmt.Errorf("%w: queue cannot be nil", domain.ErrValidation)
		}
		if _, dup := svc.queues[q.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate queue %q", domain.ErrValidation, q.Name())
		}
		svc.queues[q.Name()] = q
		svc.names = append(svc.names, q.Name())
	}
	sort.Strings(svc.names)
	return svc, nil
}

func (s *queueControlServiceImpl) lookup(name string) (ControlledQueue, error) {
	q, ok := s.queues[name]
	if !ok {
		return nil, &QueueControlError{Queue: name, Operation: "lookup", Err: domain.ErrQueueNotFound}
	}
	return q, nil
}

func controlError(name, op string, err error) error {
	return &QueueControlError{Queue: name, Operation: op, Err: fmt.Errorf("%w: %w", domain.ErrExternalService, err)}
}

// Stats implements QueueControlService.Stats
func (s *queueControlServiceImpl) Stats(ctx context.Context) ([]QueueStats, error) {
	stats := make([]QueueStats, 0, len(s.names))
	for _, name := range s.names {
		c, err := s.queues[name].Counts(ctx)
		if err != nil {
			return nil, controlError(name, "stats", err)
		}
		stats = append(stats, QueueStats{
			Name:      name,
			Waiting:   c.Waiting,
			Active:    c.Active,
			Completed: c.Completed,
			Failed:    c.Failed,
			Delayed:   c.Delayed,
			Paused:    c.Paused,
		})
	}
	return stats, nil
}

// Pause implements QueueControlService.Pause
func (s *queueControlServiceImpl) Pause(ctx context.Context, name string) error {
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := q.Pause(ctx); err != nil {
		return controlError(name, "pause", err)
	}
	return nil
}

// Resume implements QueueControlService.Resume
func (s *queueControlServiceImpl) Resume(ctx context.Context, name string) error {
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := q.Resume(ctx); err != nil {
		return controlError(name, "resume", err)
	}
	return nil
}

// ClearAll implements QueueControlService.ClearAll. The queue is paused
// while it is emptied. If the atomic obliterate fails, every state is
// cleaned and every repeatable removed one by one instead.
func (s *queueControlServiceImpl) ClearAll(ctx context.Context, name string) (ClearResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("queue", name))

	q, err := s.lookup(name)
	if err != nil {
		return ClearResult{}, err
	}

	wasPaused, err := q.IsPaused(ctx)
	if err != nil {
		return ClearResult{}, controlError(name, "clear_all", err)
	}
	if !wasPaused {
		if err := q.Pause(ctx); err != nil {
			return ClearResult{}, controlError(name, "clear_all", err)
		}
	}

	result, clearErr := s.clear(ctx, log, q)

	if !wasPaused {
		if err := q.Resume(ctx); err != nil {
			log.Error("failed to resume queue after clearing", slog.String("error", err.Error()))
			clearErr = errors.Join(clearErr, err)
		}
	}
	if clearErr != nil {
		return result, controlError(name, "clear_all", clearErr)
	}

	log.Warn("queue cleared",
		slog.Int64("removed", result.Removed),
		slog.Bool("used_fallback", result.UsedFallback),
		slog.Any("removed_schedules", result.RemovedSchedules))
	return result, nil
}

func (s *queueControlServiceImpl) clear(ctx context.Context, log *slog.Logger, q ControlledQueue) (ClearResult, error) {
	repeatables, err := q.Repeatables(ctx)
	if err != nil {
		return ClearResult{}, fmt.Errorf("failed to list repeatables: %w", err)
	}

	var result ClearResult
	removed, err := q.Obliterate(ctx)
	if err == nil {
		result.Removed = removed
		for _, r := range repeatables {
			result.RemovedSchedules = append(result.RemovedSchedules, r.Key)
		}
		return result, nil
	}
	log.Warn("obliterate failed, cleaning states one by one", slog.String("error", err.Error()))

	result.UsedFallback = true
	for _, state := range clearOrder {
		n, err := q.Clean(ctx, state)
		if err != nil {
			return result, fmt.Errorf("failed to clean %s jobs: %w", state, err)
		}
		result.Removed += n
	}

	for _, r := range repeatables {
		if _, err := q.RemoveRepeatable(ctx, r.Key); err != nil {
			return result, fmt.Errorf("failed to remove repeatable %s: %w", r.Key, err)
		}
		result.RemovedSchedules = append(result.RemovedSchedules, r.Key)
	}
	return result, nil
}

// ClearFailed implements QueueControlService.ClearFailed
func (s *queueControlServiceImpl) ClearFailed(ctx context.Context, name string) (int64, error) {
	return s.clean(ctx, name, queue.StateFailed)
}

// ClearCompleted implements QueueControlService.ClearCompleted
func (s *queueControlServiceImpl) ClearCompleted(ctx context.Context, name string) (int64, error) {
	return s.clean(ctx, name, queue.StateCompleted)
}

func (s *queueControlServiceImpl) clean(ctx context.Context, name string, state queue.State) (int64, error) {
	q, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	n, err := q.Clean(ctx, state)
	if err != nil {
		return 0, controlError(name, "clear_"+string(state), err)
	}
	return n, nil
}
