package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/suggestion-api/internal/domain"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/phrazzld/suggestion-api/internal/store"
)

// DefaultWindow is how far back history is considered.
const DefaultWindow = 7 * 24 * time.Hour

// Time-of-day bucket boundaries, in local hours.
const (
	morningStartHour   = 5
	afternoonStartHour = 12
	eveningStartHour   = 17
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// WithWindow overrides the history window.
func WithWindow(window time.Duration) Option {
	return func(a *Analyzer) {
		if window > 0 {
			a.window = window
		}
	}
}

// Analyzer computes pattern summaries from a read-only history view.
type Analyzer struct {
	history store.HistoryReader
	now     func() time.Time
	window  time.Duration
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer over history.
func NewAnalyzer(history store.HistoryReader, logger *slog.Logger, opts ...Option) (*Analyzer, error) {
	if history == nil {
		return nil, fmt.Errorf("history reader cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Analyzer{
		history: history,
		now:     time.Now,
		window:  DefaultWindow,
		logger:  logger.With(slog.String("component", "pattern_analyzer")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze returns the pattern summary for userID over the trailing window.
// Users without a closed activity in the window get
// domain.DefaultPatternSummary.
// History failures are returned wrapped in domain.ErrExternalService.
func (a *Analyzer) Analyze(ctx context.Context, userID uuid.UUID) (domain.PatternSummary, error) {
	log := logger.FromContextOrDefault(ctx, a.logger).With(slog.String("user_id", userID.String()))

	now := a.now()
	activities, err := a.history.ListActivities(ctx, store.HistoryQuery{
		UserID: userID,
		From:   now.Add(-a.window),
		To:     now,
	})
	if err != nil {
		log.Error("failed to load activity history", slog.String("error", err.Error()))
		return domain.PatternSummary{}, fmt.Errorf("%w: failed to load activity history: %w",
			domain.ErrExternalService, err)
	}

	if countClosed(activities) == 0 {
		log.Debug("no closed activity in window, using default pattern",
			slog.Int("activities", len(activities)))
		return domain.DefaultPatternSummary(), nil
	}

	summary := Summarize(activities)
	log.Debug("pattern analyzed",
		slog.Int("activities", len(activities)),
		slog.Int("completion_rate", summary.CompletionRate),
		slog.String("trend", string(summary.DifficultyTrend)))
	return summary, nil
}

// Summarize builds a pattern summary from an activity list. The type,
// time-of-day and rating figures come from closed activities only; the
// completion rate is closed over all activities. A list without a closed
// activity yields domain.DefaultPatternSummary.
func Summarize(activities []domain.HistoricalActivity) domain.PatternSummary {
	if countClosed(activities) == 0 {
		return domain.DefaultPatternSummary()
	}

	histogram := make(map[string]int)
	var (
		timeOfDay       domain.TimeOfDayHistogram
		closed          int
		rated           int
		satisfactionSum int
		hardnessSum     int
	)

	for _, act := range activities {
		if !act.IsClosed() {
			continue
		}
		closed++
		histogram[act.ActivityType]++

		switch hour := act.StartedAt.Hour(); {
		case hour >= morningStartHour && hour < afternoonStartHour:
			timeOfDay.Morning++
		case hour >= afternoonStartHour && hour < eveningStartHour:
			timeOfDay.Afternoon++
		default:
			timeOfDay.Evening++
		}

		if act.Rating != nil {
			rated++
			satisfactionSum += act.Rating.Satisfaction
			hardnessSum += act.Rating.Hardness
		}
	}

	// Without any rating the neutral defaults apply.
	defaults := domain.DefaultPatternSummary()
	avgSatisfaction, avgHardness := defaults.AverageSatisfaction, defaults.AverageHardness
	if rated > 0 {
		avgSatisfaction = float64(satisfactionSum) / float64(rated)
		avgHardness = float64(hardnessSum) / float64(rated)
	}

	return domain.PatternSummary{
		TypeHistogram:       histogram,
		AverageSatisfaction: avgSatisfaction,
		AverageHardness:     avgHardness,
		CompletionRate:      int(math.Round(float64(closed) / float64(len(activities)) * 100)),
		Preferences:         TopTypes(histogram, domain.MaxPreferences),
		TimeOfDay:           timeOfDay,
		DifficultyTrend:     domain.TrendForHardness(avgHardness),
	}
}

// TopTypes returns up to n histogram keys by count descending. Equal counts
// are ordered by name.
func TopTypes(histogram map[string]int, n int) []string {
	types := make([]string, 0, len(histogram))
	for t := range histogram {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if histogram[types[i]] != histogram[types[j]] {
			return histogram[types[i]] > histogram[types[j]]
		}
		return types[i] < types[j]
	})
	if len(types) > n {
		types = types[:n]
	}
	return types
}

func countClosed(activities []domain.HistoricalActivity) int {
	n := 0
	for _, act := range activities {
		if act.IsClosed() {
			n++
		}
	}
	return n
}
