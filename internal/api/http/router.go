package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/candidate-identity-service/internal/api/http/handlers"
	"github.com/spec-kit/candidate-identity-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Candidates     *handlers.CandidatesHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *RateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	candidate := app.Group("/candidate")
	candidate.Post("/register", cfg.Candidates.Register)
	candidate.Post("/verify-email", cfg.RateLimiter.Handle, cfg.Candidates.VerifyEmail)
	candidate.Post("/set-password", cfg.Candidates.SetPassword)
	candidate.Post("/authenticate", cfg.RateLimiter.Handle, cfg.Candidates.Authenticate)
	candidate.Get("/activate/:token", cfg.Candidates.Activate)
	candidate.Post("/forgot-password", cfg.Candidates.ForgotPassword)
	candidate.Post("/reset-password", cfg.RateLimiter.Handle, cfg.Candidates.ResetPassword)
	candidate.Post("/logout", cfg.Candidates.Logout)
	candidate.Get("/get-user-details", cfg.Candidates.GetUserDetails)
	candidate.Get("/get-all-candidates", cfg.Candidates.ListCandidates)
	candidate.Put("/edit-profile", cfg.Candidates.EditProfile)

	protected := candidate.Group("", cfg.AuthMiddleware.Handle)
	protected.Put("/change-password", cfg.Candidates.ChangePassword)
	protected.Put("/update-matricule", cfg.Candidates.UpdateMatricule)
}
