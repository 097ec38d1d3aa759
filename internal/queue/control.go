package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/suggestion-api/internal/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// Counts is the number of jobs per state.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Paused    bool  `json:"paused"`
}

// Pause stops Dequeue from handing out jobs. Active jobs are unaffected.
func (q *Queue) Pause(ctx context.Context) error {
	if err := q.client.Set(ctx, q.keys.paused, "1", 0).Err(); err != nil {
		return fmt.Errorf("failed to pause queue %s: %w", q.name, err)
	}
	q.logger.Info("queue paused")
	return nil
}

// Resume lets Dequeue hand out jobs again.
func (q *Queue) Resume(ctx context.Context) error {
	if err := q.client.Del(ctx, q.keys.paused).Err(); err != nil {
		return fmt.Errorf("failed to resume queue %s: %w", q.name, err)
	}
	q.logger.Info("queue resumed")
	return nil
}

// IsPaused reports whether the queue is paused.
func (q *Queue) IsPaused(ctx context.Context) (bool, error) {
	n, err := q.client.Exists(ctx, q.keys.paused).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read pause flag of queue %s: %w", q.name, err)
	}
	return n == 1, nil
}

// Counts returns the number of jobs per state and updates the queue gauges.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	var (
		cmds   = make(map[State]*goredis.IntCmd, len(States))
		paused *goredis.IntCmd
	)
	_, err := q.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, s := range States {
			key, _ := q.keys.set(s)
			cmds[s] = pipe.ZCard(ctx, key)
		}
		paused = pipe.Exists(ctx, q.keys.paused)
		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count jobs of queue %s: %w", q.name, err)
	}

	c := Counts{
		Waiting:   cmds[StateWaiting].Val(),
		Active:    cmds[StateActive].Val(),
		Delayed:   cmds[StateDelayed].Val(),
		Completed: cmds[StateCompleted].Val(),
		Failed:    cmds[StateFailed].Val(),
		Paused:    paused.Val() == 1,
	}
	for s, cmd := range cmds {
		metrics.QueueJobs.WithLabelValues(q.name, string(s)).Set(float64(cmd.Val()))
	}
	return c, nil
}

// Jobs lists the records in state between ranks start and stop inclusive,
// oldest first. A negative stop counts from the end.
func (q *Queue) Jobs(ctx context.Context, state State, start, stop int64) ([]*Record, error) {
	key, err := q.keys.set(state)
	if err != nil {
		return nil, err
	}

	ids, err := q.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs: %w", state, err)
	}
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = q.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, q.keys.jobPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s jobs: %w", state, err)
	}

	records := make([]*Record, 0, len(ids))
	for _, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			records = append(records, parseRecord(fields))
		}
	}
	return records, nil
}

// Clean deletes every job in state and returns how many were removed.
func (q *Queue) Clean(ctx context.Context, state State) (int64, error) {
	key, err := q.keys.set(state)
	if err != nil {
		return 0, err
	}

	n, err := cleanScript.Run(ctx, q.client, []string{key}, q.keys.jobPrefix).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to clean %s jobs of queue %s: %w", state, q.name, err)
	}
	q.logger.Info("queue cleaned", slog.String("state", string(state)), slog.Int64("removed", n))
	return n, nil
}

// Obliterate deletes every job in every state and all repeatables in one
// atomic step. The pause flag is kept.
func (q *Queue) Obliterate(ctx context.Context) (int64, error) {
	n, err := obliterateScript.Run(ctx, q.client,
		[]string{q.keys.wait, q.keys.active, q.keys.delayed, q.keys.completed, q.keys.failed, q.keys.repeat},
		q.keys.jobPrefix,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to obliterate queue %s: %w", q.name, err)
	}
	q.logger.Warn("queue obliterated", slog.Int64("removed", n))
	return n, nil
}
