package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/callback-service/internal/api/http/handlers"
	"github.com/opsdesk/callback-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. The auth guard runs ahead of every route;
// it exempts the health endpoints itself.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle)

	app.Get("/health", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets")
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/notes", cfg.Tickets.AddNote)
	tickets.Delete("/:ticketId/notes/:noteId", cfg.Tickets.DeleteNote)

	app.Get("/users", cfg.Users.ListUsers)
}
