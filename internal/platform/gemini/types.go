package gemini

import "github.com/phrazzld/suggestion-api/internal/domain"

// patternData holds the pattern fields shared by both prompt templates
type patternData struct {
	Preferences         []string
	AverageSatisfaction float64
	AverageHardness     float64
	CompletionRate      int
	DifficultyTrend     domain.DifficultyTrend
	PreferredTimeOfDay  string
}

// contentPromptData represents the data passed to the content template
type contentPromptData struct {
	patternData
	ActivityType string
	SlotNumber   int
}

// reasoningPromptData represents the data passed to the reasoning template
type reasoningPromptData struct {
	patternData
	ActivityType    string
	ConfidenceScore int
}

// ContentSchema represents the expected structure of a content response
type ContentSchema struct {
	// ActivityName is the short title of the activity
	ActivityName string `json:"activity_name"`

	// Content describes what to do
	Content string `json:"content"`
}

func newPatternData(p domain.PatternSummary) patternData {
	return patternData{
		Preferences:         p.Preferences,
		AverageSatisfaction: p.AverageSatisfaction,
		AverageHardness:     p.AverageHardness,
		CompletionRate:      p.CompletionRate,
		DifficultyTrend:     p.DifficultyTrend,
		PreferredTimeOfDay:  preferredTimeOfDay(p.TimeOfDay),
	}
}

// preferredTimeOfDay names the busiest bucket; ties favour the earlier one.
func preferredTimeOfDay(h domain.TimeOfDayHistogram) string {
	switch {
	case h.Morning >= h.Afternoon && h.Morning >= h.Evening:
		return "morning"
	case h.Afternoon >= h.Evening:
		return "afternoon"
	default:
		return "evening"
	}
}
