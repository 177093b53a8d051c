package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/image-insight/internal/model"
)

// Repository persists terminal record outcomes to the processing history.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends one history entry built from a terminal record event and
// returns its UUID.
func (r *Repository) Insert(ctx context.Context, ev model.RecordEvent) (uuid.UUID, error) {
	query := `
		INSERT INTO processing_history
			(record_id, filename, source, state, scene_type, people_count, is_safe, error_detail, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
   `

	var id uuid.UUID
	err := r.db.QueryRowContext(
		ctx, query,
		ev.RecordID, ev.Filename, ev.Source, ev.State,
		ev.SceneType, ev.PeopleCount, ev.IsSafe, ev.ErrorDetail, ev.FinishedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert: failed to save history entry: %w", err)
	}

	return id, nil
}

// ListRecent returns up to limit history entries, most recently finished
// first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	query := `
		SELECT id, record_id, filename, source, state, scene_type, people_count, is_safe, error_detail, finished_at, created_at
		FROM processing_history
		ORDER BY finished_at DESC
		LIMIT $1
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list: failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]model.HistoryEntry, 0, limit)
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.RecordID, &e.Filename, &e.Source, &e.State,
			&e.SceneType, &e.PeopleCount, &e.IsSafe, &e.ErrorDetail,
			&e.FinishedAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list: failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: failed to iterate history: %w", err)
	}

	return entries, nil
}
