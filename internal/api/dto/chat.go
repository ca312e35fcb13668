package dto

import (
	"time"

	"github.com/nflow-health/nflow/internal/domain/conversation"
)

// ChatRequest is one message plus the turns the client already shows. At
// most 50 prior turns are accepted.
type ChatRequest struct {
	Message string             `json:"message" validate:"required,notblank,max=4000"`
	History conversation.Turns `json:"history" validate:"max=50,dive"`
}

// ChatResponse is the stored conversation with the caller's remaining free
// messages. RemainingMessages is omitted for unlimited roles.
type ChatResponse struct {
	*conversation.Conversation
	RemainingMessages *int `json:"remainingMessages,omitempty"`
}

// ReviewRequest records a moderator verdict
type ReviewRequest struct {
	Approved *bool  `json:"approved" validate:"required"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// FlagRequest marks a conversation for follow-up
type FlagRequest struct {
	Reason string `json:"flagReason" validate:"required,notblank,max=500"`
}

// ExportRequest selects the window of an archive export. A nil Since
// exports the last 24 hours.
type ExportRequest struct {
	Since *time.Time `json:"since,omitempty"`
}
