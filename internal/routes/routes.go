package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/qnachat/authcore/internal/auth"
	"github.com/qnachat/authcore/internal/handlers"
	"github.com/qnachat/authcore/internal/middleware"
	"github.com/qnachat/authcore/internal/models"
	"github.com/qnachat/authcore/internal/services"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	gateway *services.AuthGateway,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	loginRateLimit middleware.RateLimitConfig,
) {
	// Public routes - no session required
	router.With(middleware.RateLimitByIP(loginRateLimit)).Post("/auth/login", authHandler.Login)
	router.Post("/auth/logout", authHandler.Logout)

	// Authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(gateway, models.RoleUser))
		r.Get("/auth/session", authHandler.Session)
	})

	// Admin-only routes
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(gateway, models.RoleAdmin))
		r.Get("/admin/accounts", adminHandler.ListAccounts)
		r.Post("/admin/accounts", adminHandler.CreateAccount)
		r.Put("/admin/accounts/{username}/password", adminHandler.ChangePassword)
		r.Delete("/admin/accounts/{username}", adminHandler.DeleteAccount)
		r.Post("/admin/accounts/{username}/revoke-sessions", adminHandler.RevokeSessions)
		r.Get("/admin/activity", adminHandler.QueryActivity)
	})
}
