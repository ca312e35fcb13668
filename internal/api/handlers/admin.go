package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nflow-health/nflow/internal/api/dto"
	"github.com/nflow-health/nflow/internal/archive"
	"github.com/nflow-health/nflow/internal/domain/account"
	"github.com/nflow-health/nflow/internal/domain/auditlog"
	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/utils"
	"github.com/nflow-health/nflow/internal/pkg/validator"
)

// Moderation is the admin review workflow plus archive export
type Moderation interface {
	conversation.ModerationService
	Export(ctx context.Context, adminID int64, since time.Time) (*archive.Result, error)
}

// ActivityLog lists admin actions
type ActivityLog interface {
	List(ctx context.Context, limit, offset int) ([]*auditlog.Entry, int64, error)
}

// AdminHandler handles account management and moderation endpoints
type AdminHandler struct {
	accounts   account.Service
	moderation Moderation
	activity   ActivityLog
	logger     *logger.Logger
	validator  *validator.Validator
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(accounts account.Service, moderation Moderation, activity ActivityLog, log *logger.Logger, val *validator.Validator) *AdminHandler {
	return &AdminHandler{
		accounts:   accounts,
		moderation: moderation,
		activity:   activity,
		logger:     log.Component("admin"),
		validator:  val,
	}
}

// ListUsers lists accounts
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} utils.PaginatedResponse "Accounts"
// @Failure 403 {object} utils.ErrorResponse "Not an admin"
// @Security BearerAuth
// @Router /api/admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := utils.ParsePaginationParams(r)
	accounts, total, err := h.accounts.List(r.Context(), p.PageSize, p.Offset)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list accounts")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(dto.NewUserDTOs(accounts), p.Page, p.PageSize, total))
}

// ActivateUser re-enables an account
// @Summary Activate account
// @Tags Admin
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} dto.UserDTO "Account"
// @Failure 404 {object} utils.ErrorResponse "Not found"
// @Security BearerAuth
// @Router /api/admin/users/{id}/activate [post]
func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateUser disables an account
// @Summary Deactivate account
// @Tags Admin
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} dto.UserDTO "Account"
// @Failure 403 {object} utils.ErrorResponse "Cannot deactivate yourself"
// @Failure 404 {object} utils.ErrorResponse "Not found"
// @Security BearerAuth
// @Router /api/admin/users/{id}/deactivate [post]
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.SetActive(r.Context(), adminID, id, active)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewUserDTO(a))
}

// PromoteUser grants or revokes the admin role
// @Summary Promote account
// @Description Grant admin (default) or return an admin to the role their subscription implies
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body dto.PromoteRequest false "Target role"
// @Success 200 {object} dto.UserDTO "Account"
// @Failure 400 {object} utils.ErrorResponse "Invalid role"
// @Security BearerAuth
// @Router /api/admin/users/{id}/promote [post]
func (h *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.PromoteRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	role := account.RoleAdmin
	if req.Role != "" {
		role = account.Role(req.Role)
	}

	a, err := h.accounts.Promote(r.Context(), adminID, id, role)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewUserDTO(a))
}

// ResetUsage zeroes an account's message counter
// @Summary Reset message usage
// @Tags Admin
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} dto.UserDTO "Account"
// @Security BearerAuth
// @Router /api/admin/users/{id}/reset-usage [post]
func (h *AdminHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.ResetUsage(r.Context(), adminID, id)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewUserDTO(a))
}

// ListChats lists conversations
// @Summary List conversations
// @Tags Admin
// @Produce json
// @Param flagged query bool false "Only flagged"
// @Param user_id query int false "Only this account"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} utils.PaginatedResponse "Conversations"
// @Security BearerAuth
// @Router /api/admin/chats [get]
func (h *AdminHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := conversation.Filter{Flagged: q.Get("flagged") == "true"}
	if uid := q.Get("user_id"); uid != "" {
		if id, err := strconv.ParseInt(uid, 10, 64); err == nil {
			f.AccountID = &id
		}
	}
	h.listChats(w, r, f)
}

// ListUnreviewed lists conversations awaiting review
// @Summary List unreviewed conversations
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.PaginatedResponse "Conversations"
// @Security BearerAuth
// @Router /api/admin/chats/unreviewed [get]
func (h *AdminHandler) ListUnreviewed(w http.ResponseWriter, r *http.Request) {
	h.listChats(w, r, conversation.Filter{Unreviewed: true})
}

func (h *AdminHandler) listChats(w http.ResponseWriter, r *http.Request, f conversation.Filter) {
	p := utils.ParsePaginationParams(r)
	convs, total, err := h.moderation.List(r.Context(), f, p.PageSize, p.Offset)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list conversations")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(convs, p.Page, p.PageSize, total))
}

// ReviewChat records a moderator verdict
// @Summary Review conversation
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body dto.ReviewRequest true "Verdict"
// @Success 200 {object} conversation.Conversation "Conversation"
// @Failure 404 {object} utils.ErrorResponse "Not found"
// @Security BearerAuth
// @Router /api/admin/chats/{id}/review [post]
func (h *AdminHandler) ReviewChat(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.ReviewRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	conv, err := h.moderation.Review(r.Context(), adminID, id, *req.Approved, req.Notes)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, conv)
}

// FlagChat marks a conversation for follow-up
// @Summary Flag conversation
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body dto.FlagRequest true "Reason"
// @Success 200 {object} conversation.Conversation "Conversation"
// @Failure 404 {object} utils.ErrorResponse "Not found"
// @Security BearerAuth
// @Router /api/admin/chats/{id}/flag [post]
func (h *AdminHandler) FlagChat(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.FlagRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	conv, err := h.moderation.Flag(r.Context(), adminID, id, req.Reason)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, conv)
}

// ExportChats uploads conversations to the archive bucket
// @Summary Export conversations
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body dto.ExportRequest false "Window start"
// @Success 200 {object} archive.Result "Export result"
// @Failure 503 {object} utils.ErrorResponse "Archive disabled"
// @Security BearerAuth
// @Router /api/admin/chats/export [post]
func (h *AdminHandler) ExportChats(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req dto.ExportRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if req.Since != nil {
		since = *req.Since
	}

	res, err := h.moderation.Export(r.Context(), adminID, since)
	if err != nil {
		h.logger.ErrorWithErr(err, "Archive export failed")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, res)
}

// ActivityLogs lists admin actions, newest first
// @Summary Admin activity log
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.PaginatedResponse "Entries"
// @Security BearerAuth
// @Router /api/admin/activity-logs [get]
func (h *AdminHandler) ActivityLogs(w http.ResponseWriter, r *http.Request) {
	p := utils.ParsePaginationParams(r)
	entries, total, err := h.activity.List(r.Context(), p.PageSize, p.Offset)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list activity log")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(entries, p.Page, p.PageSize, total))
}
