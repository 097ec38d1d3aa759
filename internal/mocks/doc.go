// Package mocks provides shared test doubles for the collaborators of the
// generation pipeline.
//
// The stores are in-memory and safe for concurrent use, so the processor,
// dispatcher and service tests can assert on resulting state instead of on
// call sequences. Each mock also exposes Fn fields to inject failures:
//
//	text := &mocks.MockTextGenerator{
//	    GenerateReasoningFn: func(ctx context.Context, req generation.ReasoningRequest) (string, error) {
//	        return "", generation.ErrContentBlocked
//	    },
//	}
package mocks
