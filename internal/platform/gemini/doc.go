// Package gemini provides an implementation of the generation.TextGenerator
// interface that uses Google's Gemini API to word activity suggestions.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the recommendation rules to Google's external Gemini service
// without exposing the details of the API to the rest of the application.
//
// Key components:
//
// 1. TextGenerator:
//   - Implements the generation.TextGenerator interface
//   - Produces activity names and descriptions as JSON
//   - Produces short plain-text reasoning for each suggestion
//
// 2. Prompt Management:
//   - Prompt templates are embedded in the binary
//   - Either template can be replaced with a file through configuration
//   - Pattern statistics are substituted into the templates
//
// 3. Error Handling:
//   - Implements retry logic with exponential backoff and jitter for transient errors
//   - Translates blocked or malformed output into generation errors
//   - Wraps every call in a circuit breaker that reports
//     generation.ErrServiceUnavailable while open
package gemini
