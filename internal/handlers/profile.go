package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tehshkola/apiserver/internal/auth"
	"github.com/tehshkola/apiserver/internal/services"
	"github.com/tehshkola/apiserver/internal/store"
	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
)

// ProfileHandler serves the applicant's own profile and quiz result.
type ProfileHandler struct {
	userService   *services.UserService
	quizService   *services.QuizService
	tokens        *auth.Tokens
	secureCookies bool
	logger        *zap.Logger
}

func NewProfileHandler(
	userService *services.UserService,
	quizService *services.QuizService,
	tokens *auth.Tokens,
	secureCookies bool,
	logger *zap.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		userService:   userService,
		quizService:   quizService,
		tokens:        tokens,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// ProfileRouter registers profile routes; QuizRouter the quiz ones.
// Both are applicant-only areas enforced by the gate.
func ProfileRouter(r chi.Router, handler *ProfileHandler) {
	r.Get("/", handler.GetProfile)
	r.Patch("/", handler.UpdateProfile)
}

func QuizRouter(r chi.Router, handler *ProfileHandler) {
	r.Get("/", handler.GetQuizResult)
	r.Post("/", handler.SaveQuizResult)
}

type ProfileResponse struct {
	User types.User `json:"user"`
}

// GetProfile returns the session user's current account state. The coin
// balance comes from the database, not the token: purchases and refunds move
// it between token refreshes.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ApplicantFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Пользователь не найден")
			return
		}
		h.logger.Error("profile fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{User: user})
}

type ProfileUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type ProfileUpdateResponse struct {
	Success bool   `json:"success"`
	Value   string `json:"value"`
}

// UpdateProfile changes the session user's name or phone and re-issues the
// session token so the claims keep matching the account.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ApplicantFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Некорректный формат")
		return
	}

	var value string
	switch req.Field {
	case "name":
		value = strings.TrimSpace(req.Value)
		if value == "" {
			writeError(w, http.StatusUnprocessableEntity, "Имя не может быть пустым")
			return
		}
		if err := h.userService.UpdateName(r.Context(), claims.UserID, value); err != nil {
			h.profileUpdateError(w, err)
			return
		}
		claims.Name = value
	case "phone":
		value = phoneSeparators.Replace(strings.TrimSpace(req.Value))
		if value != "" && !phoneRegex.MatchString(value) {
			writeError(w, http.StatusUnprocessableEntity, "Введите корректный номер телефона")
			return
		}
		if err := h.userService.UpdatePhone(r.Context(), claims.UserID, value); err != nil {
			h.profileUpdateError(w, err)
			return
		}
		claims.Phone = value
	default:
		writeError(w, http.StatusUnprocessableEntity, "Неизвестное поле")
		return
	}

	token, err := h.tokens.Issue(*claims)
	if err != nil {
		h.logger.Error("token re-issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, ProfileUpdateResponse{Success: true, Value: value})
}

func (h *ProfileHandler) profileUpdateError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Пользователь не найден")
		return
	}
	h.logger.Error("profile update failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgServerError)
}

type QuizSaveRequest struct {
	Directions map[string]int `json:"directions"`
	Top        []string       `json:"top"`
}

// SaveQuizResult stores the session user's quiz outcome, replacing any
// previous one.
func (h *ProfileHandler) SaveQuizResult(w http.ResponseWriter, r *http.Request) {
	claims, ok := ApplicantFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req QuizSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Directions) == 0 || len(req.Top) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "Missing directions or top")
		return
	}

	err := h.quizService.Save(r.Context(), types.QuizResult{
		UserID:     claims.UserID,
		Directions: req.Directions,
		Top:        req.Top,
	})
	if err != nil {
		h.logger.Error("quiz save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	writeSuccess(w)
}

type QuizResultResponse struct {
	Result *types.QuizResult `json:"result"`
}

func (h *ProfileHandler) GetQuizResult(w http.ResponseWriter, r *http.Request) {
	claims, ok := ApplicantFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	result, err := h.quizService.GetByUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, QuizResultResponse{Result: nil})
			return
		}
		h.logger.Error("quiz fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	writeJSON(w, http.StatusOK, QuizResultResponse{Result: &result})
}
