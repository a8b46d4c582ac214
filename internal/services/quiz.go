package services

import (
	"context"

	"github.com/tehshkola/apiserver/types"
)

// QuizRepository defines persistence operations for quiz results.
type QuizRepository interface {
	Upsert(ctx context.Context, result types.QuizResult) error
	GetByUser(ctx context.Context, userID int) (types.QuizResult, error)
	List(ctx context.Context) ([]types.QuizResult, error)
}

// QuizService stores and fetches quiz results. Scoring stays on the client.
type QuizService struct {
	repo QuizRepository
}

func NewQuizService(repo QuizRepository) *QuizService {
	return &QuizService{repo: repo}
}

func (s *QuizService) Save(ctx context.Context, result types.QuizResult) error {
	return s.repo.Upsert(ctx, result)
}

func (s *QuizService) GetByUser(ctx context.Context, userID int) (types.QuizResult, error) {
	return s.repo.GetByUser(ctx, userID)
}

func (s *QuizService) List(ctx context.Context) ([]types.QuizResult, error) {
	return s.repo.List(ctx)
}
