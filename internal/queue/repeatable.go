package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/phrazzld/suggestion-api/internal/domain"
)

// Repeatable is a registered recurring schedule. The dispatcher fires only
// schedules that are still registered, so removing one disables it without
// a restart.
type Repeatable struct {
	Key      string         `json:"key"`
	Kind     domain.JobKind `json:"kind"`
	Pattern  string         `json:"pattern"`
	Timezone string         `json:"timezone"`
}

// AddRepeatable registers or replaces r.
func (q *Queue) AddRepeatable(ctx context.Context, r Repeatable) error {
	if r.Key == "" || r.Pattern == "" {
		return fmt.Errorf("%w: repeatable key and pattern are required", domain.ErrValidation)
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode repeatable %s: %w", r.Key, err)
	}
	if err := q.client.HSet(ctx, q.keys.repeat, r.Key, string(body)).Err(); err != nil {
		return fmt.Errorf("failed to register repeatable %s: %w", r.Key, err)
	}
	return nil
}

// Repeatables lists registered schedules ordered by key.
func (q *Queue) Repeatables(ctx context.Context) ([]Repeatable, error) {
	entries, err := q.client.HGetAll(ctx, q.keys.repeat).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list repeatables: %w", err)
	}

	out := make([]Repeatable, 0, len(entries))
	for key, body := range entries {
		var r Repeatable
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			q.logger.Warn("skipping malformed repeatable", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// HasRepeatable reports whether key is registered.
func (q *Queue) HasRepeatable(ctx context.Context, key string) (bool, error) {
	ok, err := q.client.HExists(ctx, q.keys.repeat, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check repeatable %s: %w", key, err)
	}
	return ok, nil
}

// RemoveRepeatable unregisters key and reports whether it existed.
func (q *Queue) RemoveRepeatable(ctx context.Context, key string) (bool, error) {
	n, err := q.client.HDel(ctx, q.keys.repeat, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to remove repeatable %s: %w", key, err)
	}
	return n > 0, nil
}
