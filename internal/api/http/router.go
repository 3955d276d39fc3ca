package http

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/grievance-desk/internal/api/http/handlers"
	"github.com/spec-kit/grievance-desk/internal/auth"
	"github.com/spec-kit/grievance-desk/internal/media"
	"github.com/spec-kit/grievance-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	// PublicRoot is the directory attachment paths are relative to.
	PublicRoot string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if registry := cfg.Metrics.Registry(); registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	app.Post("/auth/login", cfg.Auth.Login)
	app.Post("/send-otp", cfg.Auth.SendOTP)

	// Stored attachments are public, like the rest of the public root. Misses fall through
	// to the ticket routes below.
	if cfg.PublicRoot != "" {
		app.Static("/tickets", filepath.Join(cfg.PublicRoot, "tickets"), fiber.Static{
			Browse:         false,
			MaxAge:         86400,
			ModifyResponse: serveStoredFile,
		})
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/dashboard", cfg.Tickets.Dashboard)
	protected.Get("/categories", cfg.Staff.ListCategories)
	protected.Post("/comments", cfg.Tickets.AddComment)

	protected.Get("/tickets/create", cfg.Tickets.CreateForm)
	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Put("/tickets/:id", cfg.Tickets.UpdateTicket)
	protected.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)
	protected.Get("/tickets/:id/history", cfg.Tickets.History)
	protected.Patch("/tickets/:id/status", auth.RequireStaff(), cfg.StaffTickets.UpdateStatus)
	// Support agents update status too, so this route sits ahead of the admin-only group.
	protected.Patch("/admin/tickets/:id/update-status", auth.RequireStaff(), cfg.StaffTickets.UpdateStatus)

	admin := protected.Group("/admin", auth.RequireAdmin())
	admin.Get("/dashboard", cfg.StaffTickets.Dashboard)
	admin.Get("/tickets", cfg.StaffTickets.List)
	admin.Get("/tickets/:id", cfg.StaffTickets.Show)
	admin.Patch("/tickets/:id/assign", cfg.StaffTickets.Assign)

	admin.Get("/users", cfg.Staff.ListUsers)
	admin.Post("/users", cfg.Staff.CreateUser)
	admin.Put("/users/:id", cfg.Staff.UpdateUser)
	admin.Delete("/users/:id", cfg.Staff.DeleteUser)

	admin.Post("/categories", cfg.Staff.CreateCategory)
	admin.Put("/categories/:id", cfg.Staff.UpdateCategory)
	admin.Delete("/categories/:id", cfg.Staff.DeleteCategory)
}

// serveStoredFile pins the Content-Type of public attachments to their extension so
// stored bytes are never rendered as markup.
func serveStoredFile(c *fiber.Ctx) error {
	contentType, inline := media.ServedContentType(c.Path())
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	if !inline {
		c.Set(fiber.HeaderContentDisposition, "attachment")
	}
	return nil
}
