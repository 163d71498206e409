package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/delta-silence/ticket-intake/internal/api/http/handlers"
)

// CreateTicketPath is where ticket submissions are accepted.
const CreateTicketPath = "/api/create-ticket"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.All(CreateTicketPath, cfg.Tickets.CreateTicket)
}
