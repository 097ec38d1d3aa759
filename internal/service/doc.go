// Package service contains the use cases behind the HTTP API. It
// orchestrates domain objects, stores (defined in internal/store) and the
// job queue.
//
// Key components:
//
//  1. SuggestionService lists a user's suggestions for today, refreshes a
//     day's set on demand and converts a suggestion into a real activity
//     under the daily limit.
//  2. QueueControlService reports and manipulates the job queues for
//     operators.
//
// Services receive dependencies through constructor injection and never
// depend on infrastructure packages directly. Every error they return wraps
// one of the domain error categories so the API layer can map it to a
// status code with errors.Is.
package service
