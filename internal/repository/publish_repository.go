package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rutaescolar/planner-api/internal/models"
)

// PublishRepository archives published schedules in Postgres. Rows are
// immutable once written.
type PublishRepository struct {
	db *sqlx.DB
}

// NewPublishRepository constructs the repository.
func NewPublishRepository(db *sqlx.DB) *PublishRepository {
	return &PublishRepository{db: db}
}

// InsertPublished stores the schedule as a new version and returns its id.
func (r *PublishRepository) InsertPublished(ctx context.Context, data models.ScheduleData) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal published schedule: %w", err)
	}

	version := models.PublishedVersion{
		ID:          uuid.NewString(),
		Day:         data.Day,
		Mode:        data.Mode,
		Payload:     payload,
		TotalBuses:  data.Stats.TotalBuses,
		TotalRoutes: data.Stats.TotalRoutes,
		PublishedAt: time.Now().UTC(),
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `INSERT INTO published_schedules
	(id, day, mode, payload, total_buses, total_routes, published_at)
	VALUES (:id, :day, :mode, :payload, :total_buses, :total_routes, :published_at)`
	if _, err := tx.NamedExecContext(ctx, query, version); err != nil {
		return "", fmt.Errorf("insert published schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit publish tx: %w", err)
	}
	return version.ID, nil
}

// ListVersions returns archived versions for one day, newest first.
func (r *PublishRepository) ListVersions(ctx context.Context, day string, limit int) ([]models.PublishedVersion, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, day, mode, total_buses, total_routes, published_at
	FROM published_schedules WHERE day = $1 ORDER BY published_at DESC LIMIT $2`
	var versions []models.PublishedVersion
	if err := r.db.SelectContext(ctx, &versions, query, day, limit); err != nil {
		return nil, fmt.Errorf("list published schedules: %w", err)
	}
	return versions, nil
}

// GetVersion loads one archived schedule payload.
func (r *PublishRepository) GetVersion(ctx context.Context, id string) (*models.ScheduleData, error) {
	const query = `SELECT id, day, mode, payload, total_buses, total_routes, published_at
	FROM published_schedules WHERE id = $1`
	var version models.PublishedVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get published schedule %s: %w", id, err)
	}
	var data models.ScheduleData
	if err := json.Unmarshal(version.Payload, &data); err != nil {
		return nil, fmt.Errorf("unmarshal published schedule %s: %w", id, err)
	}
	return &data, nil
}
