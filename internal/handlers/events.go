package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tehshkola/apiserver/internal/services"
	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
)

// EventsHandler serves the public event calendar.
type EventsHandler struct {
	eventService *services.EventService
	logger       *zap.Logger
}

func NewEventsHandler(eventService *services.EventService, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		eventService: eventService,
		logger:       logger,
	}
}

func EventsRouter(r chi.Router, handler *EventsHandler) {
	r.Get("/", handler.ListEvents)
}

type EventListResponse struct {
	Events []types.Event `json:"events"`
}

// ListEvents returns the calendar, nearest date first.
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.List(r.Context(), true)
	if err != nil {
		h.logger.Error("event list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events})
}
