package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies one variant of the Job union.
type JobKind string

const (
	JobKindGenerate     JobKind = "generate-suggestions"
	JobKindCleanup      JobKind = "cleanup-old-suggestions"
	JobKindBulkGenerate JobKind = "bulk-generate-suggestions"
	JobKindHealthCheck  JobKind = "health-check"
)

// Job is one unit of queued work. The set of implementations is closed:
// GenerateJob, CleanupJob, BulkGenerateJob and HealthCheckJob.
type Job interface {
	Kind() JobKind
	Validate() error
	sealed()
}

// GenerateJob generates the suggestion set of one user for one date.
type GenerateJob struct {
	UserID     uuid.UUID `json:"user_id"`
	TargetDate time.Time `json:"target_date"`
}

func (GenerateJob) Kind() JobKind { return JobKindGenerate }
func (GenerateJob) sealed()       {}

func (j GenerateJob) Validate() error {
	if j.UserID == uuid.Nil {
		return fmt.Errorf("%w: %s: user ID cannot be empty", ErrInvalidJob, j.Kind())
	}
	if j.TargetDate.IsZero() {
		return fmt.Errorf("%w: %s: target date cannot be empty", ErrInvalidJob, j.Kind())
	}
	return nil
}

// CleanupJob purges stale unused suggestions relative to TargetDate.
type CleanupJob struct {
	TargetDate time.Time `json:"target_date"`
}

func (CleanupJob) Kind() JobKind { return JobKindCleanup }
func (CleanupJob) sealed()       {}

func (j CleanupJob) Validate() error {
	if j.TargetDate.IsZero() {
		return fmt.Errorf("%w: %s: target date cannot be empty", ErrInvalidJob, j.Kind())
	}
	return nil
}

// BulkGenerateJob runs single-user generation for each listed user.
type BulkGenerateJob struct {
	UserIDs    []uuid.UUID `json:"user_ids"`
	TargetDate time.Time   `json:"target_date"`
}

func (BulkGenerateJob) Kind() JobKind { return JobKindBulkGenerate }
func (BulkGenerateJob) sealed()       {}

func (j BulkGenerateJob) Validate() error {
	if len(j.UserIDs) == 0 {
		return fmt.Errorf("%w: %s: at least one user ID is required", ErrInvalidJob, j.Kind())
	}
	for i, id := range j.UserIDs {
		if id == uuid.Nil {
			return fmt.Errorf("%w: %s: user ID at index %d is empty", ErrInvalidJob, j.Kind(), i)
		}
	}
	if j.TargetDate.IsZero() {
		return fmt.Errorf("%w: %s: target date cannot be empty", ErrInvalidJob, j.Kind())
	}
	return nil
}

// HealthCheckJob verifies that persistence is reachable.
type HealthCheckJob struct{}

func (HealthCheckJob) Kind() JobKind   { return JobKindHealthCheck }
func (HealthCheckJob) sealed()         {}
func (HealthCheckJob) Validate() error { return nil }

// EncodeJob validates job and serializes its payload.
func EncodeJob(job Job) (JobKind, []byte, error) {
	if job == nil {
		return "", nil, fmt.Errorf("%w: job cannot be nil", ErrInvalidJob)
	}
	if err := job.Validate(); err != nil {
		return "", nil, err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to encode %s payload: %v", ErrInvalidJob, job.Kind(), err)
	}
	return job.Kind(), payload, nil
}

// DecodeJob rebuilds and validates a job from its kind and payload.
func DecodeJob(kind JobKind, payload []byte) (Job, error) {
	var (
		job Job
		err error
	)

	switch kind {
	case JobKindGenerate:
		job, err = decodePayload[GenerateJob](payload)
	case JobKindCleanup:
		job, err = decodePayload[CleanupJob](payload)
	case JobKindBulkGenerate:
		job, err = decodePayload[BulkGenerateJob](payload)
	case JobKindHealthCheck:
		job = HealthCheckJob{}
	default:
		return nil, fmt.Errorf("%w: unknown job kind %q", ErrInvalidJob, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s payload: %v", ErrInvalidJob, kind, err)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func decodePayload[T Job](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
