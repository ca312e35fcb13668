package dto

import (
	"time"

	"github.com/nflow-health/nflow/internal/domain/account"
)

// UserDTO represents an account in API responses
type UserDTO struct {
	ID                   int64                      `json:"id"`
	Username             string                     `json:"username"`
	Role                 account.Role               `json:"role"`
	IsActive             bool                       `json:"isActive"`
	MessageCount         int                        `json:"messageCount"`
	SubscriptionID       *string                    `json:"subscriptionId,omitempty"`
	SubscriptionStatus   account.SubscriptionStatus `json:"subscriptionStatus"`
	SubscriptionProvider *account.Provider          `json:"subscriptionProvider,omitempty"`
	CreatedAt            time.Time                  `json:"createdAt"`
}

// NewUserDTO converts an account for output
func NewUserDTO(a *account.Account) *UserDTO {
	return &UserDTO{
		ID:                   a.ID,
		Username:             a.Username,
		Role:                 a.Role,
		IsActive:             a.IsActive,
		MessageCount:         a.MessageCount,
		SubscriptionID:       a.SubscriptionID,
		SubscriptionStatus:   a.SubscriptionStatus,
		SubscriptionProvider: a.SubscriptionProvider,
		CreatedAt:            a.CreatedAt,
	}
}

// NewUserDTOs converts a page of accounts
func NewUserDTOs(accounts []*account.Account) []*UserDTO {
	out := make([]*UserDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, NewUserDTO(a))
	}
	return out
}

// PromoteRequest grants or revokes the admin role. An empty role means admin.
type PromoteRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=admin user"`
}
