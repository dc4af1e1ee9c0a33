package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rutaescolar/planner-api/internal/models"
	appErrors "github.com/rutaescolar/planner-api/pkg/errors"
)

// SnapshotRepository persists draft schedule snapshots in Redis, scoped by
// day and mode so each weekday keeps its own working copy.
type SnapshotRepository struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewSnapshotRepository constructs the repository. A zero TTL keeps drafts
// indefinitely.
func NewSnapshotRepository(client *redis.Client, logger *zap.Logger, ttl time.Duration) *SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRepository{client: client, logger: logger, ttl: ttl}
}

func snapshotKey(day, mode string) string {
	return fmt.Sprintf("schedule:%s:%s", mode, day)
}

// SaveSnapshot stores the schedule under its day/mode key.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, data models.ScheduleData) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s/%s: %w", data.Mode, data.Day, err)
	}
	key := snapshotKey(data.Day, data.Mode)
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.logger.Debug("snapshot saved", zap.String("key", key))
	return nil
}

// LoadSnapshot retrieves the stored schedule for day/mode, or ErrSnapshotMiss
// when none exists.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, day, mode string) (*models.ScheduleData, error) {
	if r.client == nil {
		return nil, appErrors.ErrSnapshotMiss
	}
	key := snapshotKey(day, mode)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrSnapshotMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var data models.ScheduleData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return &data, nil
}

// DeleteSnapshot drops the stored draft for day/mode.
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context, day, mode string) error {
	if r.client == nil {
		return nil
	}
	key := snapshotKey(day, mode)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}
