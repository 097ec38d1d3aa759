package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/metrics"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/platform/redis"
	"github.com/phrazzld/suggestion-api/internal/queue"
	"github.com/phrazzld/suggestion-api/internal/redact"
	"github.com/phrazzld/suggestion-api/internal/store"
	"github.com/robfig/cron/v3"
)

// Repeatable keys of the two schedules.
const (
	DailyScheduleKey  = "daily-suggestions"
	WeeklyScheduleKey = "weekly-cleanup"
)

// RunGuardKey is the lease every dispatch run holds.
const RunGuardKey = "dispatch:run-guard"

// Schedule labels used in metrics.
const (
	scheduleDaily  = "daily"
	scheduleWeekly = "weekly"
	scheduleManual = "manual"
	scheduleUser   = "user"
)

// Defaults.
const (
	DefaultDailySchedule              = "0 0 * * *"
	DefaultWeeklySchedule             = "0 0 * * 0"
	DefaultPageSize                   = 100
	DefaultPageDelay                  = 2000 * time.Millisecond
	DefaultLockTTL                    = 30 * time.Minute
	DefaultMaxConsecutivePageFailures = 3
	DefaultWeeklyCleanupDays          = 30
)

// ErrTooManyPageFailures is returned when the user directory keeps failing
// and a run gives up.
var ErrTooManyPageFailures = fmt.Errorf("%w: too many consecutive user page failures", domain.ErrExternalService)

// JobQueue is the part of queue.Queue the dispatcher uses.
type JobQueue interface {
	Add(ctx context.Context, job domain.Job, opts queue.AddOptions) (string, error)
	Counts(ctx context.Context) (queue.Counts, error)
	AddRepeatable(ctx context.Context, r queue.Repeatable) error
	HasRepeatable(ctx context.Context, key string) (bool, error)
}

// RunGuard hands out the exclusive dispatch lease.
type RunGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*redis.Lease, error)
}

// Config tunes a Dispatcher. Zero values take the defaults.
type Config struct {
	DailySchedule              string
	WeeklySchedule             string
	Location                   *time.Location
	PageSize                   int
	PageDelay                  time.Duration
	LockTTL                    time.Duration
	MaxConsecutivePageFailures int
	WeeklyCleanupDays          int
}

// DispatchResult summarizes one run.
type DispatchResult struct {
	Skipped     bool   `json:"skipped"`
	TargetDate  string `json:"target_date,omitempty"`
	Enqueued    int    `json:"enqueued"`
	Pages       int    `json:"pages"`
	FailedPages int    `json:"failed_pages"`
}

// Dispatcher turns cron ticks and manual triggers into queued jobs. Runs
// are serialized across processes by a lease on RunGuardKey.
type Dispatcher struct {
	queue  JobQueue
	users  store.UserDirectory
	guard  RunGuard
	config Config
	cron   *cron.Cron
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. The cron schedules are parsed here so
// a bad expression fails at startup.
func NewDispatcher(q JobQueue, users store.UserDirectory, guard RunGuard, config Config, logger *slog.Logger) (*Dispatcher, error) {
	if q == nil || users == nil || guard == nil {
		return nil, errors.New("queue, user directory and run guard are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.DailySchedule == "" {
		config.DailySchedule = DefaultDailySchedule
	}
	if config.WeeklySchedule == "" {
		config.WeeklySchedule = DefaultWeeklySchedule
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.PageDelay < 0 {
		config.PageDelay = 0
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	if config.MaxConsecutivePageFailures <= 0 {
		config.MaxConsecutivePageFailures = DefaultMaxConsecutivePageFailures
	}
	if config.WeeklyCleanupDays <= 0 {
		config.WeeklyCleanupDays = DefaultWeeklyCleanupDays
	}

	d := &Dispatcher{
		queue:  q,
		users:  users,
		guard:  guard,
		config: config,
		cron:   cron.New(cron.WithLocation(config.Location)),
		now:    time.Now,
		sleep:  sleepContext,
		logger: logger.With(slog.String("component", "dispatcher")),
	}

	if _, err := d.cron.AddFunc(config.DailySchedule, func() {
		d.fire(DailyScheduleKey, scheduleDaily, d.RunDaily)
	}); err != nil {
		return nil, fmt.Errorf("%w: invalid daily schedule %q: %w", domain.ErrValidation, config.DailySchedule, err)
	}
	if _, err := d.cron.AddFunc(config.WeeklySchedule, func() {
		d.fire(WeeklyScheduleKey, scheduleWeekly, d.RunWeeklyCleanup)
	}); err != nil {
		return nil, fmt.Errorf("%w: invalid weekly schedule %q: %w", domain.ErrValidation, config.WeeklySchedule, err)
	}

	return d, nil
}

// Start records both schedules as queue repeatables and starts the cron
// scheduler.
func (d *Dispatcher) Start(ctx context.Context) error {
	repeatables := []queue.Repeatable{
		{Key: DailyScheduleKey, Kind: domain.JobKindGenerate, Pattern: d.config.DailySchedule, Timezone: d.config.Location.String()},
		{Key: WeeklyScheduleKey, Kind: domain.JobKindCleanup, Pattern: d.config.WeeklySchedule, Timezone: d.config.Location.String()},
	}
	for _, r := range repeatables {
		if err := d.queue.AddRepeatable(ctx, r); err != nil {
			return fmt.Errorf("failed to register schedule %s: %w", r.Key, err)
		}
	}

	d.cron.Start()
	d.logger.Info("dispatcher started",
		slog.String("daily_schedule", d.config.DailySchedule),
		slog.String("weekly_schedule", d.config.WeeklySchedule),
		slog.String("timezone", d.config.Location.String()))
	return nil
}

// Stop stops the scheduler and waits for a running dispatch to finish or
// ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) {
	stopCtx := d.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	d.logger.Info("dispatcher stopped")
}

// fire runs a scheduled dispatch if its repeatable is still registered.
func (d *Dispatcher) fire(key, schedule string, run func(context.Context) (*DispatchResult, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.LockTTL)
	defer cancel()
	log := d.logger.With(slog.String("schedule", key))

	registered, err := d.queue.HasRepeatable(ctx, key)
	if err != nil {
		log.Error("failed to look up schedule", slog.String("error", redact.Error(err)))
		return
	}
	if !registered {
		metrics.DispatchRuns.WithLabelValues(schedule, metrics.OutcomeSkipped).Inc()
		log.Warn("schedule is no longer registered, skipping run")
		return
	}

	if _, err := run(logger.WithLogger(ctx, log)); err != nil {
		log.Error("scheduled dispatch failed", slog.String("error", redact.Error(err)))
	}
}

// RunDaily enqueues a high-priority cleanup for today followed by one
// generate job per user. If another run holds the guard it does nothing
// and reports Skipped.
func (d *Dispatcher) RunDaily(ctx context.Context) (*DispatchResult, error) {
	res, err := d.daily(ctx, scheduleDaily)
	if errors.Is(err, domain.ErrDispatchInProgress) {
		return &DispatchResult{Skipped: true}, nil
	}
	return res, err
}

// TriggerDaily is RunDaily on demand. A held guard yields
// domain.ErrDispatchInProgress.
func (d *Dispatcher) TriggerDaily(ctx context.Context) (*DispatchResult, error) {
	return d.daily(ctx, scheduleManual)
}

// RunWeeklyCleanup enqueues a cleanup relative to WeeklyCleanupDays ago.
// Like RunDaily it is a no-op while another run holds the guard.
func (d *Dispatcher) RunWeeklyCleanup(ctx context.Context) (*DispatchResult, error) {
	res := &DispatchResult{}
	err := d.guarded(ctx, scheduleWeekly, func(ctx context.Context, _ *redis.Lease) error {
		target := domain.NormalizeDate(d.now().In(d.config.Location)).AddDate(0, 0, -d.config.WeeklyCleanupDays)
		res.TargetDate = target.Format(time.DateOnly)
		if _, err := d.queue.Add(ctx, domain.CleanupJob{TargetDate: target}, queue.AddOptions{Priority: queue.PriorityHigh}); err != nil {
			return fmt.Errorf("failed to enqueue weekly cleanup: %w", err)
		}
		res.Enqueued = 1
		return nil
	})
	if errors.Is(err, domain.ErrDispatchInProgress) {
		return &DispatchResult{Skipped: true}, nil
	}
	return res, err
}

// TriggerUser enqueues a high-priority generate job for one user. A zero
// date means today.
func (d *Dispatcher) TriggerUser(ctx context.Context, userID uuid.UUID, date time.Time) (string, error) {
	if date.IsZero() {
		date = d.now().In(d.config.Location)
	}

	var id string
	err := d.guarded(ctx, scheduleUser, func(ctx context.Context, _ *redis.Lease) error {
		var err error
		id, err = d.queue.Add(ctx, domain.GenerateJob{UserID: userID, TargetDate: domain.NormalizeDate(date)},
			queue.AddOptions{Priority: queue.PriorityHigh})
		return err
	})
	return id, err
}

func (d *Dispatcher) daily(ctx context.Context, schedule string) (*DispatchResult, error) {
	res := &DispatchResult{}
	err := d.guarded(ctx, schedule, func(ctx context.Context, lease *redis.Lease) error {
		return d.dispatchDaily(ctx, lease, res)
	})
	return res, err
}

// guarded runs fn while holding the run-guard lease and records the outcome.
func (d *Dispatcher) guarded(ctx context.Context, schedule string, fn func(context.Context, *redis.Lease) error) error {
	log := logger.FromContextOrDefault(ctx, d.logger)

	lease, err := d.guard.Acquire(ctx, RunGuardKey, d.config.LockTTL)
	if errors.Is(err, redis.ErrLockHeld) {
		metrics.DispatchRuns.WithLabelValues(schedule, metrics.OutcomeSkipped).Inc()
		log.Info("dispatch already in progress", slog.String("run", schedule))
		return domain.ErrDispatchInProgress
	}
	if err != nil {
		metrics.DispatchRuns.WithLabelValues(schedule, metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%w: failed to acquire run guard: %w", domain.ErrExternalService, err)
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			log.Warn("failed to release run guard", slog.String("error", err.Error()))
		}
	}()

	if err := fn(ctx, lease); err != nil {
		metrics.DispatchRuns.WithLabelValues(schedule, metrics.OutcomeFailure).Inc()
		return err
	}
	metrics.DispatchRuns.WithLabelValues(schedule, metrics.OutcomeSuccess).Inc()
	return nil
}

func (d *Dispatcher) dispatchDaily(ctx context.Context, lease *redis.Lease, res *DispatchResult) error {
	log := logger.FromContextOrDefault(ctx, d.logger)
	today := domain.NormalizeDate(d.now().In(d.config.Location))
	res.TargetDate = today.Format(time.DateOnly)

	if _, err := d.queue.Add(ctx, domain.CleanupJob{TargetDate: today}, queue.AddOptions{Priority: queue.PriorityHigh}); err != nil {
		return fmt.Errorf("failed to enqueue cleanup: %w", err)
	}
	res.Enqueued++

	pageSize := d.config.PageSize
	total := -1
	consecutiveFailures := 0

	for page := 1; total < 0 || (page-1)*pageSize < total; page++ {
		if page > 1 {
			if err := d.sleep(ctx, d.config.PageDelay); err != nil {
				return fmt.Errorf("dispatch interrupted before page %d: %w", page, err)
			}
		}

		users, err := d.users.ListUsers(ctx, page, pageSize)
		res.Pages++
		if err != nil {
			res.FailedPages++
			consecutiveFailures++
			log.Warn("failed to list users, skipping page",
				slog.Int("page", page),
				slog.String("error", redact.Error(err)))
			// Once the total is known the loop is bounded, so failures only
			// end the run while it is still unknown.
			if total < 0 && consecutiveFailures >= d.config.MaxConsecutivePageFailures {
				return fmt.Errorf("%w: stopped at page %d: %w", ErrTooManyPageFailures, page, err)
			}
			if err := lease.Extend(ctx, d.config.LockTTL); err != nil {
				return fmt.Errorf("failed to extend run guard: %w", err)
			}
			continue
		}
		consecutiveFailures = 0
		total = users.Total

		for _, userID := range users.UserIDs {
			if _, err := d.queue.Add(ctx, domain.GenerateJob{UserID: userID, TargetDate: today}, queue.AddOptions{}); err != nil {
				return fmt.Errorf("failed to enqueue generation for user %s: %w", userID, err)
			}
			res.Enqueued++
		}

		if err := lease.Extend(ctx, d.config.LockTTL); err != nil {
			return fmt.Errorf("failed to extend run guard: %w", err)
		}
		if len(users.UserIDs) < pageSize {
			break
		}
	}

	attrs := []any{
		slog.String("target_date", res.TargetDate),
		slog.Int("enqueued", res.Enqueued),
		slog.Int("pages", res.Pages),
		slog.Int("failed_pages", res.FailedPages),
	}
	if counts, err := d.queue.Counts(ctx); err == nil {
		attrs = append(attrs,
			slog.Int64("waiting", counts.Waiting),
			slog.Int64("active", counts.Active),
			slog.Int64("delayed", counts.Delayed),
			slog.Int64("failed", counts.Failed))
	}
	log.Info("daily dispatch finished", attrs...)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
