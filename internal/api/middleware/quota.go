package middleware

import (
	"net/http"

	"github.com/nflow-health/nflow/internal/domain/quota"
	"github.com/nflow-health/nflow/internal/pkg/errors"
	"github.com/nflow-health/nflow/internal/pkg/i18n"
	"github.com/nflow-health/nflow/internal/pkg/utils"
)

// QuotaExceededResponse is the body of a quota refusal. The top-level
// message and flags are what browser clients read.
type QuotaExceededResponse struct {
	utils.ErrorResponse
	Message           string `json:"message"`
	NeedsSubscription bool   `json:"needsSubscription"`
	RedirectTo        string `json:"redirectTo"`
}

// Quota returns a middleware that refuses chat requests once the caller's
// free messages are used up. Must run after AuthMiddleware. An allowed
// decision travels on in the request context, see quota.FromContext.
func Quota(gate quota.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok {
				utils.WriteError(w, errors.Unauthorized("Not authenticated"))
				return
			}

			decision, err := gate.Check(r.Context(), userID)
			if err != nil {
				if errors.HasCode(err, errors.ErrCodeQuotaExceeded) {
					WriteQuotaExceeded(w, r, gate.UpgradeURL())
					return
				}
				utils.WriteErr(w, err)
				return
			}

			AddLogField(w, "quota_remaining", decision.Remaining)
			next.ServeHTTP(w, r.WithContext(quota.NewContext(r.Context(), decision)))
		})
	}
}

// WriteQuotaExceeded writes the 403 upsell response in the caller's language
func WriteQuotaExceeded(w http.ResponseWriter, r *http.Request, upgradeURL string) {
	msg := i18n.FromRequest(r, i18n.QuotaExceeded)
	utils.WriteJSON(w, http.StatusForbidden, QuotaExceededResponse{
		ErrorResponse: utils.ErrorResponse{
			Success: false,
			Error: utils.ErrorDetail{
				Code:    errors.ErrCodeQuotaExceeded,
				Message: msg,
				Details: map[string]interface{}{
					"needsSubscription": true,
					"redirectTo":        upgradeURL,
				},
			},
		},
		Message:           msg,
		NeedsSubscription: true,
		RedirectTo:        upgradeURL,
	})
}
