package services

import (
	"context"

	"github.com/tehshkola/apiserver/types"
)

// EventRepository defines persistence operations for calendar events.
type EventRepository interface {
	List(ctx context.Context, ascending bool) ([]types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	Delete(ctx context.Context, id int) error
}

// EventService encapsulates event calendar use-cases.
type EventService struct {
	repo EventRepository
}

func NewEventService(repo EventRepository) *EventService {
	return &EventService{repo: repo}
}

func (s *EventService) List(ctx context.Context, ascending bool) ([]types.Event, error) {
	return s.repo.List(ctx, ascending)
}

func (s *EventService) Create(ctx context.Context, event types.Event) (types.Event, error) {
	return s.repo.Create(ctx, event)
}

func (s *EventService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
