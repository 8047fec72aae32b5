package routes

import (
	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/handlers"
	"github.com/BradenHooton/mithaq/internal/middleware"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth          *handlers.AuthHandler
	Conversations *handlers.ConversationHandler
	Live          *handlers.LiveHandler
	Moderation    *handlers.ModerationHandler
	Likes         *handlers.LikeHandler
	Guardians     *handlers.GuardianHandler
	Audit         *handlers.AuditHandler
}

// Limits configures the per-route rate limits
type Limits struct {
	Auth    middleware.RateLimitConfig
	Send    middleware.RateLimitConfig
	Reports middleware.RateLimitConfig
	Trusted pkghttp.TrustedProxies
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	limits Limits,
	tokenManager *auth.TokenManager,
	members auth.MemberLoader,
	guardians auth.GuardianLoader,
) {
	authLimit := middleware.RateLimitByIP(limits.Auth, limits.Trusted)

	// Public routes - no authentication required
	router.With(authLimit).Post("/auth/register", h.Auth.Register)
	router.With(authLimit).Post("/auth/login", h.Auth.Login)
	router.With(authLimit).Post("/guardian/session", h.Auth.GuardianSession)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, members, guardians))
		r.Use(middleware.TagCaller)

		// Members (guardian tokens excluded)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireMember())

			r.Post("/conversations", h.Conversations.StartConversation)
			r.Get("/conversations", h.Conversations.ListConversations)
			r.Get("/conversations/{id}/messages", h.Conversations.FetchMessages)
			r.Get("/conversations/{id}/live", h.Live.Serve)

			r.With(middleware.RateLimitByCaller(limits.Send, limits.Trusted)).Post("/messages", h.Conversations.SendMessage)
			r.Delete("/messages/{id}", h.Conversations.DeleteMessage)

			r.With(middleware.RateLimitByCaller(limits.Reports, limits.Trusted)).Post("/reports", h.Moderation.CreateReport)
			r.Post("/likes", h.Likes.CreateLike)

			r.Post("/guardians", h.Guardians.RequestGuardian)
			r.Get("/guardians", h.Guardians.ListGuardians)
			r.Patch("/guardians/{id}/preferences", h.Guardians.UpdatePreferences)
			r.Post("/guardians/{id}/authenticator", h.Guardians.EnrollAuthenticator)
		})

		// Guardian dashboard
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireGuardianOrAdmin())

			r.Get("/guardian/likes", h.Likes.ListPending)
			r.Post("/guardian/likes/{id}/approve", h.Likes.Approve)
			r.Post("/guardian/likes/{id}/reject", h.Likes.Reject)
		})

		// Moderators and admins
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireStaff())

			r.Get("/reports", h.Moderation.ListReports)
			r.Post("/reports/{id}/investigate", h.Moderation.InvestigateReport)
			r.Post("/reports/{id}/approve", h.Moderation.ApproveReport)
			r.Post("/reports/{id}/dismiss", h.Moderation.DismissReport)

			r.Post("/members/{id}/suspend", h.Moderation.SuspendMember)
			r.Post("/members/{id}/warn", h.Moderation.WarnMember)

			r.Put("/messages/{id}/block", h.Conversations.ModerateMessage)
			r.Get("/audit", h.Audit.List)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin())

				r.Post("/members/{id}/ban", h.Moderation.BanMember)
				r.Post("/members/{id}/unblock", h.Moderation.UnblockMember)
				r.Post("/guardians/{id}/review", h.Guardians.Review)
			})
		})
	})
}
