package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/nflow-health/nflow/internal/api/handlers"
	"github.com/nflow-health/nflow/internal/api/middleware"
	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/domain/quota"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Chat    *handlers.ChatHandler
	Billing *handlers.BillingHandler
	Admin   *handlers.AdminHandler
}

// Deps are the non-handler collaborators the middleware needs
type Deps struct {
	Gate     quota.Gate
	Accounts middleware.AccountLookup
}

// New builds the HTTP handler with all routes and middleware mounted
func New(cfg *config.Config, log *logger.Logger, h *Handlers, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.FrontendCORS(cfg.Server.FrontendURL, cfg.Server.IsProduction()))
	r.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/swagger/*", httpSwagger.WrapHandler)
		r.Handle("/metrics", metrics.Handler())

		// Health checks
		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
		r.Get("/api/health", h.Health.Healthz)

		// Auth
		r.Post("/api/register", h.Auth.Register)
		r.Post("/api/login", h.Auth.Login)
		r.Post("/api/logout", h.Auth.Logout)
		r.Post("/api/auth/refresh", h.Auth.RefreshToken)

		// Billing
		r.Get("/api/billing/plans", h.Billing.ListPlans)

		// Provider webhooks authenticate by signature
		r.Post("/api/webhook", h.Billing.StripeWebhook)
		r.Post("/api/webhooks/paypal", h.Billing.PayPalWebhook)
	})

	// Protected routes (require a session)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.SessionSecret))

		r.Get("/api/user", h.Auth.Me)
		r.Delete("/api/user", h.Auth.Close)
		r.Get("/api/usage", h.Auth.Usage)

		r.Get("/api/chats", h.Chat.History)
		r.With(middleware.Quota(deps.Gate)).Post("/api/chat", h.Chat.Send)

		r.Post("/api/subscriptions/activate", h.Billing.ActivateSubscription)
		r.Post("/api/create-subscription-session", h.Billing.CreateCheckoutSession)
		r.Get("/api/billing/info", h.Billing.Info)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(deps.Accounts))

			r.Route("/api/admin", func(r chi.Router) {
				r.Get("/users", h.Admin.ListUsers)
				r.Post("/users/{id}/activate", h.Admin.ActivateUser)
				r.Post("/users/{id}/deactivate", h.Admin.DeactivateUser)
				r.Post("/users/{id}/promote", h.Admin.PromoteUser)
				r.Post("/users/{id}/reset-usage", h.Admin.ResetUsage)

				r.Get("/chats", h.Admin.ListChats)
				r.Get("/chats/unreviewed", h.Admin.ListUnreviewed)
				r.Post("/chats/export", h.Admin.ExportChats)
				r.Post("/chats/{id}/review", h.Admin.ReviewChat)
				r.Post("/chats/{id}/flag", h.Admin.FlagChat)

				r.Get("/activity-logs", h.Admin.ActivityLogs)
			})

			// aliases used by the web client
			r.Get("/api/chats/unreviewed", h.Admin.ListUnreviewed)
			r.Post("/api/chats/{id}/review", h.Admin.ReviewChat)
		})
	})

	return r
}
