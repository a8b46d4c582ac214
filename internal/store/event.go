package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tehshkola/apiserver/types"
)

// EventRepository handles persistence for calendar events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns all events ordered by date. The public calendar asks for
// ascending order, the back office for newest first.
func (r *EventRepository) List(ctx context.Context, ascending bool) ([]types.Event, error) {
	query := `SELECT id, name, date, COALESCE(image, ''), description, created_at FROM events ORDER BY date DESC, id DESC`
	if ascending {
		query = `SELECT id, name, date, COALESCE(image, ''), description, created_at FROM events ORDER BY date ASC, id ASC`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]types.Event, 0)
	for rows.Next() {
		var event types.Event
		if err := rows.Scan(
			&event.ID,
			&event.Name,
			&event.Date,
			&event.Image,
			&event.Description,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	event.CreatedAt = time.Now()

	const query = `
		INSERT INTO events (name, date, image, description, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.Name,
		event.Date,
		event.Image,
		event.Description,
		event.CreatedAt,
	).Scan(&event.ID); err != nil {
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
