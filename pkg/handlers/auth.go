package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/audit"
	"github.com/ekaya-inc/finmon/pkg/auth"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/services"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on successful login. The token is also set as an
// httpOnly cookie.
type LoginResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService services.UserService
	cookies     auth.CookieSettings
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(userService services.UserService, cookies auth.CookieSettings, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		cookies:     cookies,
		auditor:     audit.NewSecurityAuditor(logger),
		logger:      logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.Me))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.auditor.LogLogin(req.Email, "", r.RemoteAddr, err)
		writeServiceError(w, h.logger, "log in", err)
		return
	}

	h.cookies.SetTokenCookie(w, result.Token, result.ExpiresAt)
	h.auditor.LogLogin(req.Email, result.User.ID.String(), r.RemoteAddr, nil)

	data := LoginResponse{User: result.User, Token: result.Token, ExpiresAt: result.ExpiresAt}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Logout handles POST /api/auth/logout
// Tokens are stateless, so logging out only clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearTokenCookie(w)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Logged out"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, "get current user", err, zap.String("user_id", userID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: user}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
