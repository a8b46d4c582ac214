package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/tehshkola/apiserver/types"
)

// QuizRepository handles persistence for quiz results, one row per user.
type QuizRepository struct {
	db *sql.DB
}

func NewQuizRepository(db *sql.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Upsert stores the user's quiz result, replacing a previous one.
func (r *QuizRepository) Upsert(ctx context.Context, result types.QuizResult) error {
	directionsJSON, err := json.Marshal(result.Directions)
	if err != nil {
		return err
	}
	topJSON, err := json.Marshal(result.Top)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO quiz_results (user_id, directions, top, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET directions = $2, top = $3, completed_at = $4`
	_, err = r.db.ExecContext(ctx, query, result.UserID, directionsJSON, topJSON, time.Now())
	return err
}

func (r *QuizRepository) GetByUser(ctx context.Context, userID int) (types.QuizResult, error) {
	const query = `SELECT user_id, directions, top, completed_at FROM quiz_results WHERE user_id = $1`
	result, err := scanQuizResult(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.QuizResult{}, ErrNotFound
		}
		return types.QuizResult{}, err
	}
	return result, nil
}

// List returns every stored quiz result, used by the back office to show
// results next to users.
func (r *QuizRepository) List(ctx context.Context) ([]types.QuizResult, error) {
	const query = `SELECT user_id, directions, top, completed_at FROM quiz_results`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]types.QuizResult, 0)
	for rows.Next() {
		result, err := scanQuizResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func scanQuizResult(row interface{ Scan(...any) error }) (types.QuizResult, error) {
	var result types.QuizResult
	var directionsJSON, topJSON []byte
	if err := row.Scan(&result.UserID, &directionsJSON, &topJSON, &result.CompletedAt); err != nil {
		return types.QuizResult{}, err
	}
	_ = json.Unmarshal(directionsJSON, &result.Directions)
	_ = json.Unmarshal(topJSON, &result.Top)
	return result, nil
}
