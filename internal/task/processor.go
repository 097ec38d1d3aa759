package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/generation"
	"github.com/phrazzld/suggestion-api/internal/metrics"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/queue"
	"github.com/phrazzld/suggestion-api/internal/redact"
	"github.com/phrazzld/suggestion-api/internal/store"
)

// DefaultRetentionDays is how long unused suggestions survive the daily cleanup.
const DefaultRetentionDays = 7

// ErrUnhealthy is returned by a health-check job when the database does not
// answer.
var ErrUnhealthy = errors.New("health check failed")

// PatternAnalyzer summarizes a user's recent history.
type PatternAnalyzer interface {
	Analyze(ctx context.Context, userID uuid.UUID) (domain.PatternSummary, error)
}

// SuggestionGenerator builds a suggestion set from a pattern.
type SuggestionGenerator interface {
	Generate(ctx context.Context, req generation.Request) ([]*domain.Suggestion, error)
}

// Database is the part of *sql.DB the processor needs.
type Database interface {
	store.TxBeginner
	PingContext(ctx context.Context) error
}

// ProcessorConfig tunes a Processor.
type ProcessorConfig struct {
	// SuggestionsPerUser is the size of each generated set.
	SuggestionsPerUser int

	// RetentionDays is the age in days after which unused suggestions are purged.
	RetentionDays int
}

// GenerateResult is the outcome of a generate job.
type GenerateResult struct {
	UserID     uuid.UUID `json:"user_id"`
	TargetDate string    `json:"target_date"`
	Generated  int       `json:"generated"`
	Replaced   int64     `json:"replaced"`
}

// CleanupResult is the outcome of a cleanup job.
type CleanupResult struct {
	Cutoff  string `json:"cutoff"`
	Deleted int64  `json:"deleted"`
}

// UserResult is the outcome for one user of a bulk job.
type UserResult struct {
	UserID    uuid.UUID `json:"user_id"`
	Generated int       `json:"generated"`
	Error     string    `json:"error,omitempty"`
}

// BulkGenerateResult is the outcome of a bulk-generate job.
type BulkGenerateResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Users     []UserResult `json:"users"`
}

// HealthCheckResult is the outcome of a health-check job.
type HealthCheckResult struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
}

// Processor executes jobs.
type Processor struct {
	db          Database
	suggestions store.SuggestionStore
	catalog     store.ActivityTypeCatalog
	analyzer    PatternAnalyzer
	generator   SuggestionGenerator
	config      ProcessorConfig
	now         func() time.Time
	logger      *slog.Logger
}

// NewProcessor creates a Processor. Zero config values take the defaults.
func NewProcessor(
	db Database,
	suggestions store.SuggestionStore,
	catalog store.ActivityTypeCatalog,
	analyzer PatternAnalyzer,
	generator SuggestionGenerator,
	config ProcessorConfig,
	logger *slog.Logger,
) (*Processor, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if suggestions == nil {
		return nil, errors.New("suggestion store cannot be nil")
	}
	if catalog == nil {
		return nil, errors.New("activity type catalog cannot be nil")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.SuggestionsPerUser <= 0 {
		config.SuggestionsPerUser = generation.DefaultSuggestionCount
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultRetentionDays
	}

	return &Processor{
		db:          db,
		suggestions: suggestions,
		catalog:     catalog,
		analyzer:    analyzer,
		generator:   generator,
		config:      config,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "job_processor")),
	}, nil
}

// Process runs job and returns its result for the job record.
func (p *Processor) Process(ctx context.Context, job domain.Job) (any, error) {
	switch j := job.(type) {
	case domain.GenerateJob:
		return p.GenerateForUser(ctx, j.UserID, j.TargetDate)
	case domain.CleanupJob:
		return p.Cleanup(ctx, j.TargetDate)
	case domain.BulkGenerateJob:
		return p.BulkGenerate(ctx, j.UserIDs, j.TargetDate)
	case domain.HealthCheckJob:
		res := HealthCheckResult{Healthy: p.HealthCheck(ctx), CheckedAt: p.now().UTC()}
		if !res.Healthy {
			return res, ErrUnhealthy
		}
		return res, nil
	default:
		return nil, queue.Unrecoverable(fmt.Errorf("%w: unsupported job %T", domain.ErrInvalidJob, job))
	}
}

// GenerateForUser generates a fresh set for the user and date. The user's
// unused suggestions for that date are replaced in the same transaction;
// used ones are kept.
func (p *Processor) GenerateForUser(ctx context.Context, userID uuid.UUID, date time.Time) (*GenerateResult, error) {
	return p.generate(ctx, userID, date, false)
}

// RefreshForUser is GenerateForUser but discards every suggestion the user
// holds for the date, used or not.
func (p *Processor) RefreshForUser(ctx context.Context, userID uuid.UUID, date time.Time) (*GenerateResult, error) {
	return p.generate(ctx, userID, date, true)
}

func (p *Processor) generate(ctx context.Context, userID uuid.UUID, date time.Time, all bool) (*GenerateResult, error) {
	log := logger.FromContextOrDefault(ctx, p.logger).With(slog.String("user_id", userID.String()))

	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user ID cannot be empty", domain.ErrValidation)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: target date cannot be empty", domain.ErrInvalidDate)
	}
	date = domain.NormalizeDate(date)

	pattern, err := p.analyzer.Analyze(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze patterns: %w", err)
	}

	types, err := p.catalog.ListTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list activity types: %w", domain.ErrPersistence, err)
	}

	suggestions, err := p.generator.Generate(ctx, generation.Request{
		UserID:         userID,
		Pattern:        pattern,
		Count:          p.config.SuggestionsPerUser,
		AvailableTypes: types,
		TargetDate:     date,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExternalService, err)
	}

	var replaced int64
	err = store.RunInTransaction(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := p.suggestions.WithTx(tx)

		var err error
		if all {
			replaced, err = txStore.DeleteForDate(ctx, userID, date)
		} else {
			replaced, err = txStore.DeleteUnusedForDate(ctx, userID, date)
		}
		if err != nil {
			return fmt.Errorf("failed to delete previous suggestions: %w", err)
		}

		if err := txStore.CreateMany(ctx, suggestions); err != nil {
			return fmt.Errorf("failed to save suggestions: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to persist suggestions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	metrics.SuggestionsGenerated.Add(float64(len(suggestions)))
	log.Info("generated suggestions",
		slog.String("target_date", date.Format(time.DateOnly)),
		slog.Int("generated", len(suggestions)),
		slog.Int64("replaced", replaced))

	return &GenerateResult{
		UserID:     userID,
		TargetDate: date.Format(time.DateOnly),
		Generated:  len(suggestions),
		Replaced:   replaced,
	}, nil
}

// Cleanup deletes unused suggestions dated more than RetentionDays before
// targetDate.
func (p *Processor) Cleanup(ctx context.Context, targetDate time.Time) (*CleanupResult, error) {
	if targetDate.IsZero() {
		return nil, fmt.Errorf("%w: target date cannot be empty", domain.ErrInvalidDate)
	}
	cutoff := domain.NormalizeDate(targetDate).AddDate(0, 0, -p.config.RetentionDays)

	deleted, err := p.suggestions.DeleteUnusedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to delete stale suggestions: %w", domain.ErrPersistence, err)
	}

	metrics.SuggestionsCleaned.Add(float64(deleted))
	logger.FromContextOrDefault(ctx, p.logger).Info("cleaned up stale suggestions",
		slog.String("cutoff", cutoff.Format(time.DateOnly)),
		slog.Int64("deleted", deleted))

	return &CleanupResult{Cutoff: cutoff.Format(time.DateOnly), Deleted: deleted}, nil
}

// BulkGenerate runs GenerateForUser for each user in order. A failing user
// is recorded and skipped; the batch as a whole fails only when ctx ends.
func (p *Processor) BulkGenerate(ctx context.Context, userIDs []uuid.UUID, date time.Time) (*BulkGenerateResult, error) {
	res := &BulkGenerateResult{Total: len(userIDs), Users: make([]UserResult, 0, len(userIDs))}

	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("bulk generation interrupted after %d users: %w", len(res.Users), err)
		}

		ur := UserResult{UserID: id}
		gen, err := p.GenerateForUser(ctx, id, date)
		if err != nil {
			ur.Error = redact.Error(err)
			res.Failed++
			logger.FromContextOrDefault(ctx, p.logger).Warn("bulk generation failed for user",
				slog.String("user_id", id.String()),
				slog.String("error", ur.Error))
		} else {
			ur.Generated = gen.Generated
			res.Succeeded++
		}
		res.Users = append(res.Users, ur)
	}

	return res, nil
}

// HealthCheck reports whether the database answers a ping.
func (p *Processor) HealthCheck(ctx context.Context) bool {
	if err := p.db.PingContext(ctx); err != nil {
		logger.FromContextOrDefault(ctx, p.logger).Error("health check failed",
			slog.String("error", redact.Error(err)))
		return false
	}
	return true
}
