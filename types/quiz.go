package types

import "time"

// QuizResult stores a user's specialization quiz outcome.
// Scoring happens on the client; the server only keeps the result.
type QuizResult struct {
	// UserID references the user the result belongs to. One result per user;
	// retaking the quiz overwrites the previous result.
	UserID int `json:"user_id" db:"user_id"`

	// Directions maps a specialization name to its tallied score.
	Directions map[string]int `json:"directions" db:"directions"`

	// Top lists the recommended specializations, best first.
	Top []string `json:"top" db:"top"`

	// CompletedAt is the timestamp of the most recent quiz completion.
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}
