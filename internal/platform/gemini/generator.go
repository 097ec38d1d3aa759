package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/suggestion-api/internal/config"
	"github.com/phrazzld/suggestion-api/internal/generation"
	"github.com/phrazzld/suggestion-api/internal/metrics"
	"github.com/phrazzld/suggestion-api/internal/platform/logger"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// Retry defaults applied when the configuration carries invalid values.
const (
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 2
)

// Breaker defaults applied when the configuration leaves them unset.
const (
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

const jsonMIMEType = "application/json"

// contentModel is the slice of the genai client used by TextGenerator.
// *genai.Models implements it.
type contentModel interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TextGenerator implements generation.TextGenerator using Google's Gemini API.
type TextGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// contentTemplate and reasoningTemplate render the two prompt kinds
	contentTemplate   *template.Template
	reasoningTemplate *template.Template

	// models is the Gemini API surface used for requests
	models contentModel

	// breaker stops calls while the API is failing
	breaker *gobreaker.CircuitBreaker[string]

	sleep sleepFunc
}

var _ generation.TextGenerator = (*TextGenerator)(nil)

// NewTextGenerator creates a TextGenerator backed by a genai client.
//
// Parameters:
//   - ctx: Context for client initialization
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name, and other settings
//
// Returns:
//   - A ready TextGenerator, or an error wrapping generation.ErrInvalidConfig
func NewTextGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*TextGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newTextGenerator(logger, cfg, client.Models)
}

// newTextGenerator wires a TextGenerator around models. Tests pass a fake.
func newTextGenerator(logger *slog.Logger, cfg config.LLMConfig, models contentModel) (*TextGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if models == nil {
		return nil, fmt.Errorf("%w: model client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	contentTmpl, err := loadTemplate(contentTemplateName, cfg.ContentTemplatePath)
	if err != nil {
		return nil, err
	}
	reasoningTmpl, err := loadTemplate(reasoningTemplateName, cfg.ReasoningTemplatePath)
	if err != nil {
		return nil, err
	}

	log := logger.With(slog.String("component", "gemini"), slog.String("model", cfg.ModelName))

	if cfg.MaxRetries < 0 {
		log.Warn("invalid max retries value, using default", slog.Int("max_retries", defaultMaxRetries))
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelaySeconds < 1 {
		log.Warn("invalid retry delay value, using default",
			slog.Int("retry_delay_seconds", defaultRetryDelaySeconds))
		cfg.RetryDelaySeconds = defaultRetryDelaySeconds
	}

	return &TextGenerator{
		logger:            log,
		config:            cfg,
		contentTemplate:   contentTmpl,
		reasoningTemplate: reasoningTmpl,
		models:            models,
		breaker:           newBreaker(cfg, log),
		sleep:             sleepContext,
	}, nil
}

func newBreaker(cfg config.LLMConfig, log *slog.Logger) *gobreaker.CircuitBreaker[string] {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}

	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Bad or blocked output says nothing about service health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, generation.ErrInvalidResponse) ||
				errors.Is(err, generation.ErrContentBlocked) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.TextGenerationBreakerState.Set(breakerStateValue(to))
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// GenerateContent implements generation.TextGenerator.GenerateContent.
// The model is asked for a JSON object; a response without both fields is
// rejected with generation.ErrInvalidResponse.
func (g *TextGenerator) GenerateContent(
	ctx context.Context,
	req generation.ContentRequest,
) (generation.GeneratedContent, error) {
	prompt, err := render(g.contentTemplate, contentPromptData{
		patternData:  newPatternData(req.Pattern),
		ActivityType: req.ActivityType,
		SlotNumber:   req.SlotIndex + 1,
	})
	if err != nil {
		return generation.GeneratedContent{}, err
	}

	text, err := g.call(ctx, prompt, &genai.GenerateContentConfig{ResponseMIMEType: jsonMIMEType})
	if err != nil {
		return generation.GeneratedContent{}, err
	}

	var parsed ContentSchema
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return generation.GeneratedContent{}, fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err)
	}
	parsed.ActivityName = strings.TrimSpace(parsed.ActivityName)
	parsed.Content = strings.TrimSpace(parsed.Content)
	if parsed.ActivityName == "" {
		return generation.GeneratedContent{}, fmt.Errorf("%w: missing activity name", generation.ErrInvalidResponse)
	}
	if parsed.Content == "" {
		return generation.GeneratedContent{}, fmt.Errorf("%w: missing content", generation.ErrInvalidResponse)
	}

	return generation.GeneratedContent{ActivityName: parsed.ActivityName, Content: parsed.Content}, nil
}

// GenerateReasoning implements generation.TextGenerator.GenerateReasoning.
func (g *TextGenerator) GenerateReasoning(ctx context.Context, req generation.ReasoningRequest) (string, error) {
	prompt, err := render(g.reasoningTemplate, reasoningPromptData{
		patternData:     newPatternData(req.Pattern),
		ActivityType:    req.ActivityType,
		ConfidenceScore: req.ConfidenceScore,
	})
	if err != nil {
		return "", err
	}

	text, err := g.call(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty reasoning", generation.ErrInvalidResponse)
	}
	return text, nil
}

// call runs one retried request through the circuit breaker.
func (g *TextGenerator) call(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	text, err := g.breaker.Execute(func() (string, error) {
		return g.callWithRetry(ctx, prompt, cfg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", generation.ErrServiceUnavailable, err)
	}
	return text, err
}

// callWithRetry makes a call to the Gemini API with exponential backoff retry logic.
//
// It attempts the call up to config.MaxRetries+1 times, waiting
// baseDelay * 2^attempt * (0.5 + rand(0, 0.5)) between attempts. Permanent
// errors (blocked or malformed output, rejected requests) are returned
// immediately.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation and logging
//   - prompt: The rendered prompt
//   - cfg: Optional per-request generation settings
//
// Returns:
//   - The concatenated text of the first candidate
//   - An error if all retries fail or a permanent error occurs
func (g *TextGenerator) callWithRetry(
	ctx context.Context,
	prompt string,
	cfg *genai.GenerateContentConfig,
) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	log := logger.FromContextOrDefault(ctx, g.logger)
	maxRetries := g.config.MaxRetries

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		log.Debug("making Gemini API call",
			slog.Int("attempt", attemptNum),
			slog.Int("max_attempts", maxRetries+1))

		text, transient, err := g.generateOnce(ctx, prompt, cfg)
		if err == nil {
			return text, nil
		}

		log.Warn("Gemini API call failed",
			slog.Int("attempt", attemptNum),
			slog.String("error", err.Error()))

		if !transient {
			return "", err
		}
		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		delay := g.backoff(attempt)
		log.Info("retrying after delay",
			slog.Int("attempt", attemptNum),
			slog.Duration("delay", delay))
		if err := g.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
		}
	}
}

// backoff returns the jittered delay after the given zero-based attempt.
func (g *TextGenerator) backoff(attempt int) time.Duration {
	backoffSeconds := float64(g.config.RetryDelaySeconds) * math.Pow(2, float64(attempt))
	jitterFactor := 0.5 + rand.Float64()*0.5
	return time.Duration(backoffSeconds * jitterFactor * float64(time.Second))
}

// generateOnce performs a single API call. transient reports whether a
// retry may succeed.
func (g *TextGenerator) generateOnce(
	ctx context.Context,
	prompt string,
	cfg *genai.GenerateContentConfig,
) (text string, transient bool, err error) {
	resp, err := g.models.GenerateContent(ctx, g.config.ModelName, genai.Text(prompt), cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", isTransientAPIError(err), err
	}

	if resp == nil {
		return "", false, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", false, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked,
			resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", false, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", false, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", false, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", false, fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return sb.String(), false, nil
}

// isTransientAPIError treats rate limiting, server errors and anything that
// is not an API error (network failures) as retryable.
func isTransientAPIError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
