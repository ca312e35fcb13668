package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nflow-health/nflow/internal/api/dto"
	"github.com/nflow-health/nflow/internal/api/middleware"
	"github.com/nflow-health/nflow/internal/auth"
	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/i18n"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/utils"
	"github.com/nflow-health/nflow/internal/pkg/validator"
)

// AuthHandler handles authentication and account endpoints
type AuthHandler struct {
	accounts  account.Service
	config    *config.Config
	logger    *logger.Logger
	validator *validator.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts account.Service, cfg *config.Config, log *logger.Logger, val *validator.Validator) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		config:    cfg,
		logger:    log,
		validator: val,
	}
}

// Register handles account registration
// @Summary Register
// @Description Create a standard account and start a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Credentials"
// @Success 201 {object} dto.AuthResponse "Account created"
// @Failure 400 {object} utils.ErrorResponse "Invalid request"
// @Failure 409 {object} utils.ErrorResponse "Username taken"
// @Router /api/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	a, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeConflict) {
			h.logger.ErrorWithErr(err, "Failed to register account")
		}
		utils.WriteErr(w, err)
		return
	}

	h.startSession(w, a, http.StatusCreated)
}

// Login handles user login
// @Summary Login
// @Description Authenticate with username and password. Sets the session cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.AuthResponse "Login successful"
// @Failure 400 {object} utils.ErrorResponse "Invalid request"
// @Failure 401 {object} utils.ErrorResponse "Invalid credentials"
// @Router /api/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	a, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		appErr := errors.From(err)
		if appErr.Code != errors.ErrCodeUnauthorized {
			h.logger.ErrorWithErr(err, "Login failed")
			utils.WriteError(w, appErr)
			return
		}
		h.logger.With("username", req.Username).Warn("Rejected login")
		key := i18n.InvalidCredentials
		if appErr.Message == "Account deactivated" {
			key = i18n.AccountDisabled
		}
		utils.WriteError(w, errors.Unauthorized(i18n.FromRequest(r, key)))
		return
	}

	h.startSession(w, a, http.StatusOK)
}

// Logout handles user logout
// @Summary Logout
// @Description Clear the session cookies
// @Tags Auth
// @Success 200 {object} utils.SuccessResponse
// @Router /api/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	secure := h.secureCookies()
	clearTokenCookie(w, middleware.SessionCookie, secure)
	clearTokenCookie(w, RefreshCookie, secure)

	utils.WriteSuccessWithMessage(w, http.StatusOK, i18n.FromRequest(r, i18n.LoggedOut), nil)
}

// RefreshToken exchanges a refresh token for a new pair
// @Summary Refresh session
// @Description Issue new tokens from a refresh token in the body or the refresh cookie
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest false "Refresh token"
// @Success 200 {object} dto.AuthResponse "New tokens generated"
// @Failure 401 {object} utils.ErrorResponse "Invalid refresh token"
// @Router /api/auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshTokenRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.WriteError(w, errors.BadRequest("Invalid request body"))
			return
		}
	}
	if req.RefreshToken == "" {
		if c, err := r.Cookie(RefreshCookie); err == nil {
			req.RefreshToken = c.Value
		}
	}
	if req.RefreshToken == "" {
		utils.WriteError(w, errors.Unauthorized("Invalid refresh token"))
		return
	}

	claims, err := auth.ParseClaims(req.RefreshToken, h.config.Auth.SessionSecret, auth.KindRefresh)
	if err != nil {
		utils.WriteError(w, errors.Unauthorized("Invalid refresh token"))
		return
	}

	a, err := h.accounts.GetByID(r.Context(), claims.UserID)
	if err != nil || !a.IsActive {
		utils.WriteError(w, errors.Unauthorized("Invalid refresh token"))
		return
	}

	h.startSession(w, a, http.StatusOK)
}

// Me returns the current account
// @Summary Current account
// @Tags Auth
// @Produce json
// @Success 200 {object} dto.UserDTO "Account"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/user [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil {
		if errors.IsNotFound(err) {
			utils.WriteError(w, errors.Unauthorized("Not authenticated"))
			return
		}
		h.logger.ErrorWithErr(err, "Failed to get account")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewUserDTO(a))
}

// Close deactivates the caller's account and ends the session
// @Summary Close account
// @Description Deactivate the current account. Conversations are kept.
// @Tags Auth
// @Success 200 {object} utils.SuccessResponse
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/user [delete]
func (h *AuthHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Close(r.Context(), userID); err != nil {
		h.logger.ErrorWithErr(err, "Failed to close account")
		utils.WriteErr(w, err)
		return
	}

	secure := h.secureCookies()
	clearTokenCookie(w, middleware.SessionCookie, secure)
	clearTokenCookie(w, RefreshCookie, secure)

	utils.WriteSuccessWithMessage(w, http.StatusOK, i18n.FromRequest(r, i18n.AccountClosed), nil)
}

// Usage returns the caller's free message allowance
// @Summary Message usage
// @Tags Auth
// @Produce json
// @Success 200 {object} account.Usage "Usage"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/usage [get]
func (h *AuthHandler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	usage, err := h.accounts.Usage(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, usage)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, a *account.Account, status int) {
	tokens, err := auth.MintTokens(
		a.ID,
		a.Username,
		string(a.Role),
		h.config.Auth.SessionSecret,
		h.config.Auth.AccessTokenExpiry,
		h.config.Auth.RefreshTokenExpiry,
	)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to generate tokens")
		utils.WriteError(w, errors.Internal("Failed to generate tokens", err))
		return
	}

	secure := h.secureCookies()
	setTokenCookie(w, middleware.SessionCookie, tokens.AccessToken, h.config.Auth.AccessTokenExpiry, secure)
	setTokenCookie(w, RefreshCookie, tokens.RefreshToken, h.config.Auth.RefreshTokenExpiry, secure)

	middleware.AddLogField(w, "user_id", a.ID)
	utils.WriteSuccess(w, status, dto.AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         dto.NewUserDTO(a),
	})
}

func (h *AuthHandler) secureCookies() bool {
	return h.config.Server.IsProduction()
}
