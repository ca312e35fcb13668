package handlers

import (
	"context"
	"net/http"

	"github.com/nflow-health/nflow/internal/api/dto"
	"github.com/nflow-health/nflow/internal/api/middleware"
	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/domain/quota"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/i18n"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/utils"
	"github.com/nflow-health/nflow/internal/pkg/validator"
)

// ChatSender runs one metered exchange with the assistant
type ChatSender interface {
	Send(ctx context.Context, accountID int64, message string, history conversation.Turns) (*conversation.Conversation, quota.Decision, error)
	History(ctx context.Context, accountID int64, limit, offset int) ([]*conversation.Conversation, int64, error)
}

// ChatHandler handles chat endpoints
type ChatHandler struct {
	chat       ChatSender
	upgradeURL string
	logger     *logger.Logger
	validator  *validator.Validator
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatSender, upgradeURL string, log *logger.Logger, val *validator.Validator) *ChatHandler {
	return &ChatHandler{
		chat:       chat,
		upgradeURL: upgradeURL,
		logger:     log,
		validator:  val,
	}
}

// Send handles a chat message
// @Summary Send a chat message
// @Description Ask the assistant. Standard accounts are limited to a number of free messages.
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "Message and prior turns"
// @Success 200 {object} dto.ChatResponse "Stored conversation"
// @Failure 400 {object} utils.ErrorResponse "Invalid request"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Failure 403 {object} middleware.QuotaExceededResponse "Free messages used up"
// @Failure 500 {object} utils.ErrorResponse "Assistant unavailable"
// @Security BearerAuth
// @Router /api/chat [post]
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req dto.ChatRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	conv, decision, err := h.chat.Send(r.Context(), userID, req.Message, req.History)
	if err != nil {
		appErr := errors.From(err)
		switch appErr.Code {
		case errors.ErrCodeQuotaExceeded:
			middleware.WriteQuotaExceeded(w, r, h.upgradeURL)
		case errors.ErrCodeProviderAPI:
			utils.WriteError(w, errors.Wrap(appErr.Internal, appErr.Code, i18n.FromRequest(r, i18n.AssistantFailed), appErr.StatusCode))
		default:
			h.logger.ErrorWithErr(err, "Chat request failed")
			utils.WriteError(w, appErr)
		}
		return
	}

	resp := dto.ChatResponse{Conversation: conv}
	if !decision.Unlimited {
		remaining := decision.Remaining
		resp.RemainingMessages = &remaining
	}

	middleware.AddLogField(w, "conversation_id", conv.ID)
	utils.WriteJSON(w, http.StatusOK, resp)
}

// History lists the caller's conversations
// @Summary Chat history
// @Tags Chat
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} utils.PaginatedResponse "Conversations, newest first"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/chats [get]
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	p := utils.ParsePaginationParams(r)
	convs, total, err := h.chat.History(r.Context(), userID, p.PageSize, p.Offset)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list conversations")
		utils.WriteErr(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(convs, p.Page, p.PageSize, total))
}
