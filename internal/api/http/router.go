package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Ingest  *handlers.IngestHandler
	Tickets *handlers.TicketsHandler

	IntegrationKeys *auth.IntegrationKeys
	TicketTokens    *auth.TicketTokenManager
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/stats", cfg.Health.Stats)

	// The unified endpoint carries its api key in the body; per-channel
	// routes use the X-API-Key header.
	app.Post("/ingest", cfg.Ingest.Ingest)

	keyed := app.Group("/ingest", auth.RequireIntegrationKey(cfg.IntegrationKeys))
	keyed.Post("/glpi", cfg.Ingest.IngestFor(domain.SourceGLPI))
	keyed.Post("/solman", cfg.Ingest.IngestFor(domain.SourceSolman))
	keyed.Post("/email", cfg.Ingest.IngestFor(domain.SourceEmail))
	keyed.Post("/chatbot", cfg.Ingest.IngestFor(domain.SourceChatbot))
	keyed.Post("/web-form", cfg.Ingest.IngestWebForm)

	tickets := app.Group("/tickets")
	tickets.Get("", auth.RequireIntegrationKey(cfg.IntegrationKeys), cfg.Tickets.ListTickets)

	scoped := tickets.Group("/:id", auth.RequireTicketAccess(cfg.TicketTokens, cfg.IntegrationKeys))
	scoped.Get("", cfg.Tickets.GetTicket)
	scoped.Get("/events", cfg.Tickets.StreamEvents)
	scoped.Post("/messages", cfg.Tickets.AddMessage)
	scoped.Post("/messages/:mid/read", cfg.Tickets.MarkMessageRead)
	scoped.Post("/typing", cfg.Tickets.Typing)
	scoped.Patch("/status", cfg.Tickets.UpdateStatus)
	scoped.Post("/reopen", cfg.Tickets.Reopen)
}
