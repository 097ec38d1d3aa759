// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts HTTP to the suggestion and queue control
// services and maps their domain errors to status codes.
package api
