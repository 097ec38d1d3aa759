package domain

// DifficultyTrend describes where a user's recent activity difficulty sits.
type DifficultyTrend string

const (
	TrendIncreasing DifficultyTrend = "increasing"
	TrendStable     DifficultyTrend = "stable"
	TrendDecreasing DifficultyTrend = "decreasing"
)

// Hardness thresholds for the difficulty trend.
const (
	HighHardnessThreshold = 70
	LowHardnessThreshold  = 30
)

// MaxPreferences is the number of ranked preferred activity types.
const MaxPreferences = 3

// TimeOfDayHistogram counts activities per part of the day.
type TimeOfDayHistogram struct {
	Morning   int `json:"morning"`
	Afternoon int `json:"afternoon"`
	Evening   int `json:"evening"`
}

// PatternSummary is the behavioral profile derived from a user's recent
// history. It is never persisted.
type PatternSummary struct {
	TypeHistogram       map[string]int     `json:"type_histogram"`
	AverageSatisfaction float64            `json:"average_satisfaction"`
	AverageHardness     float64            `json:"average_hardness"`
	CompletionRate      int                `json:"completion_rate"`
	Preferences         []string           `json:"preferences"`
	TimeOfDay           TimeOfDayHistogram `json:"time_of_day"`
	DifficultyTrend     DifficultyTrend    `json:"difficulty_trend"`
}

// HasType reports whether activityType appears in the type histogram.
func (p PatternSummary) HasType(activityType string) bool {
	return p.TypeHistogram[activityType] > 0
}

// TrendForHardness maps an average hardness to a difficulty trend.
func TrendForHardness(hardness float64) DifficultyTrend {
	switch {
	case hardness > HighHardnessThreshold:
		return TrendIncreasing
	case hardness < LowHardnessThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// defaultActivityTypes is the fixed type set of the default pattern.
var defaultActivityTypes = []string{"exercise", "learning", "mindfulness", "social"}

// DefaultPatternSummary is used for users without recent history.
func DefaultPatternSummary() PatternSummary {
	histogram := make(map[string]int, len(defaultActivityTypes))
	for _, t := range defaultActivityTypes {
		histogram[t] = 1
	}

	return PatternSummary{
		TypeHistogram:       histogram,
		AverageSatisfaction: 75,
		AverageHardness:     50,
		CompletionRate:      80,
		Preferences:         append([]string(nil), defaultActivityTypes[:MaxPreferences]...),
		TimeOfDay:           TimeOfDayHistogram{Morning: 1, Afternoon: 1, Evening: 1},
		DifficultyTrend:     TrendStable,
	}
}
