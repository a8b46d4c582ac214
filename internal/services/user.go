package services

import (
	"context"

	"github.com/tehshkola/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateName(ctx context.Context, id int, name string) error
	UpdatePhone(ctx context.Context, id int, phone string) error
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates a fresh applicant account with an empty coin balance.
func (s *UserService) Register(ctx context.Context, name, phone string) (types.User, error) {
	return s.repo.Create(ctx, types.User{
		Name:  name,
		Phone: phone,
		Role:  types.RoleApplicant,
	})
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) UpdateName(ctx context.Context, id int, name string) error {
	return s.repo.UpdateName(ctx, id, name)
}

func (s *UserService) UpdatePhone(ctx context.Context, id int, phone string) error {
	return s.repo.UpdatePhone(ctx, id, phone)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
