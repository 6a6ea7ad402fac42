package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vicmordi/AIHelpdesk/internal/api/http/handlers"
	"github.com/vicmordi/AIHelpdesk/internal/auth"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Knowledge      *handlers.KnowledgeHandler
	Suggestions    *handlers.SuggestionsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics is served at /metrics when set.
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/read", cfg.Tickets.MarkRead)

	tickets.Patch("/:id/status", auth.RequireStaff(), cfg.StaffTickets.UpdateStatus)
	tickets.Patch("/:id/assignee", auth.RequireStaff(), cfg.StaffTickets.Assign)
	tickets.Get("/:id/history", auth.RequireStaff(), cfg.StaffTickets.History)

	knowledge := api.Group("/knowledge")
	knowledge.Get("/", cfg.Knowledge.List)
	knowledge.Get("/:id", cfg.Knowledge.Get)
	knowledge.Post("/", auth.RequireStaff(), cfg.Knowledge.Create)
	knowledge.Put("/:id", auth.RequireStaff(), cfg.Knowledge.Update)
	knowledge.Delete("/:id", auth.RequireStaff(), cfg.Knowledge.Delete)

	improvement := api.Group("/knowledge-improvement", auth.RequireSuperAdmin())
	improvement.Post("/analyze", cfg.Suggestions.RunAnalysis)
	improvement.Get("/analytics", cfg.Suggestions.Analytics)
	improvement.Get("/suggestions", cfg.Suggestions.List)
	improvement.Get("/suggestions/:id", cfg.Suggestions.Get)
	improvement.Patch("/suggestions/:id", cfg.Suggestions.Edit)
	improvement.Post("/suggestions/:id/approve", cfg.Suggestions.Approve)
	improvement.Post("/suggestions/:id/reject", cfg.Suggestions.Reject)

	api.Get("/notifications/unread", cfg.Notifications.Unread)
}
