package account

import "time"

// Role is the tier an account belongs to
type Role string

// Account roles
const (
	RoleUser         Role = "user"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleProfessional, RoleAdmin:
		return true
	}
	return false
}

// Unrestricted reports whether the role may chat without a message ceiling
func (r Role) Unrestricted() bool {
	return r == RoleProfessional || r == RoleAdmin
}

// SubscriptionStatus is the billing state of an account
type SubscriptionStatus string

// Subscription states
const (
	StatusInactive SubscriptionStatus = "inactive"
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Provider identifies the payment processor that owns a subscription
type Provider string

// Payment providers
const (
	ProviderPayPal Provider = "paypal"
	ProviderStripe Provider = "stripe"
)

// Valid reports whether p is a known provider
func (p Provider) Valid() bool {
	return p == ProviderPayPal || p == ProviderStripe
}

// Account is a registered user of the chat service
type Account struct {
	ID                   int64              `json:"id"`
	Username             string             `json:"username"`
	PasswordHash         string             `json:"-"`
	Role                 Role               `json:"role"`
	IsActive             bool               `json:"isActive"`
	MessageCount         int                `json:"messageCount"`
	SubscriptionID       *string            `json:"subscriptionId,omitempty"`
	SubscriptionStatus   SubscriptionStatus `json:"subscriptionStatus"`
	SubscriptionProvider *Provider          `json:"subscriptionProvider,omitempty"`
	SubscriptionEventAt  int64              `json:"-"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// IsAdmin reports whether the account holds the admin role
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// SubscribedRole is the role implied by the subscription state alone,
// used when an admin is demoted.
func (a *Account) SubscribedRole() Role {
	if a.SubscriptionStatus == StatusActive {
		return RoleProfessional
	}
	return RoleUser
}

// Usage summarises the account's free message allowance under ceiling
func (a *Account) Usage(ceiling int) Usage {
	u := Usage{
		Role:  a.Role,
		Count: a.MessageCount,
		Limit: ceiling,
	}
	if a.Role.Unrestricted() {
		u.Unlimited = true
		return u
	}
	u.Remaining = ceiling - a.MessageCount
	if u.Remaining < 0 {
		u.Remaining = 0
	}
	return u
}

// Usage describes how many free messages an account has left
type Usage struct {
	Role      Role `json:"role"`
	Count     int  `json:"messageCount"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remainingMessages"`
	Unlimited bool `json:"unlimited"`
}

// Update is a partial account update. Nil fields are left unchanged.
type Update struct {
	PasswordHash *string
	Role         *Role
	IsActive     *bool
}

// Empty reports whether the update changes nothing
func (u Update) Empty() bool {
	return u.PasswordHash == nil && u.Role == nil && u.IsActive == nil
}

// SubscriptionChange is the state transition the reconciler asks storage to apply
type SubscriptionChange struct {
	AccountID      int64
	SubscriptionID string
	Provider       Provider
	Activate       bool
	OccurredAt     time.Time
}
