package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tehshkola/apiserver/config"
	"github.com/tehshkola/apiserver/internal/auth"
	"github.com/tehshkola/apiserver/internal/services"
	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Mobile numbers only, +7 or 8 prefix, after separators are stripped.
var phoneRegex = regexp.MustCompile(`^(\+7|8)9\d{9}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// AuthHandler owns registration, commission login and logout.
type AuthHandler struct {
	userService   *services.UserService
	tokens        *auth.Tokens
	admin         config.AdminConfig
	secureCookies bool
	logger        *zap.Logger
}

func NewAuthHandler(userService *services.UserService, tokens *auth.Tokens, cfg config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		tokens:        tokens,
		admin:         cfg.Admin,
		secureCookies: cfg.IsProduction(),
		logger:        logger,
	}
}

// AuthRouter registers the session endpoints on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/logout", handler.Logout)
	r.Post("/commission/login", handler.CommissionLogin)
}

type RegisterRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Register creates an applicant account and opens its session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Ошибка валидации данных.")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "Имя не может быть пустым")
		return
	}

	phone := phoneSeparators.Replace(strings.TrimSpace(req.Phone))
	if phone != "" && !phoneRegex.MatchString(phone) {
		writeError(w, http.StatusUnprocessableEntity, "Введите корректный номер телефона.")
		return
	}

	user, err := h.userService.Register(r.Context(), req.Name, phone)
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	token, err := h.tokens.Issue(auth.Claims{
		UserID:   user.ID,
		Name:     user.Name,
		Phone:    user.Phone,
		Verified: user.Verified,
		Role:     user.Role,
	})
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	h.setCookie(w, AuthCookie, token, int(auth.TokenTTL/time.Second))
	writeSuccess(w)
}

type CommissionLoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// CommissionLogin checks the configured credentials and opens a commission
// session. The commission token carries only the role, no user identity.
func (h *AuthHandler) CommissionLogin(w http.ResponseWriter, r *http.Request) {
	var req CommissionLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnauthorized, "Неверный логин или пароль")
		return
	}

	if !h.credentialsValid(req.Login, req.Password) {
		writeError(w, http.StatusUnauthorized, "Неверный логин или пароль")
		return
	}

	token, err := h.tokens.Issue(auth.Claims{Role: types.RoleCommission})
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	h.setCookie(w, CommissionCookie, token, int(auth.TokenTTL/time.Second))
	writeSuccess(w)
}

func (h *AuthHandler) credentialsValid(login, password string) bool {
	if h.admin.Login == "" || h.admin.PasswordHash == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(login), []byte(h.admin.Login)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(password)) == nil
}

// Logout clears the applicant session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, AuthCookie, "", -1)
	writeSuccess(w)
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
