package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/suggestion-api/internal/generation"
)

// MockTextGenerator implements generation.TextGenerator for testing
type MockTextGenerator struct {
	// GenerateContentFn allows test cases to mock the GenerateContent behavior
	GenerateContentFn func(ctx context.Context, req generation.ContentRequest) (generation.GeneratedContent, error)

	// GenerateReasoningFn allows test cases to mock the GenerateReasoning behavior
	GenerateReasoningFn func(ctx context.Context, req generation.ReasoningRequest) (string, error)

	mu               sync.Mutex
	ContentRequests  []generation.ContentRequest
	ReasoningRequest []generation.ReasoningRequest
}

var _ generation.TextGenerator = (*MockTextGenerator)(nil)

// GenerateContent implements generation.TextGenerator. Without a custom
// function it returns deterministic text derived from the request.
func (m *MockTextGenerator) GenerateContent(
	ctx context.Context,
	req generation.ContentRequest,
) (generation.GeneratedContent, error) {
	m.mu.Lock()
	m.ContentRequests = append(m.ContentRequests, req)
	m.mu.Unlock()

	if m.GenerateContentFn != nil {
		return m.GenerateContentFn(ctx, req)
	}
	return generation.GeneratedContent{
		ActivityName: fmt.Sprintf("%s activity %d", req.ActivityType, req.SlotIndex+1),
		Content:      fmt.Sprintf("Spend some time on %s today.", req.ActivityType),
	}, nil
}

// GenerateReasoning implements generation.TextGenerator
func (m *MockTextGenerator) GenerateReasoning(ctx context.Context, req generation.ReasoningRequest) (string, error) {
	m.mu.Lock()
	m.ReasoningRequest = append(m.ReasoningRequest, req)
	m.mu.Unlock()

	if m.GenerateReasoningFn != nil {
		return m.GenerateReasoningFn(ctx, req)
	}
	return fmt.Sprintf("You often choose %s activities.", req.ActivityType), nil
}

// ContentCalls returns how many times GenerateContent was called
func (m *MockTextGenerator) ContentCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ContentRequests)
}
