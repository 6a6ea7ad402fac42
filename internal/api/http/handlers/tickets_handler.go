package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vicmordi/AIHelpdesk/internal/api/dto"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/service"
)

// TicketsHandler serves the ticket endpoints shared by requesters and staff.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, msgs, err := h.service.Create(c.UserContext(), actor, req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketThreadResponse{
		Ticket:   dto.NewTicketSummary(ticket),
		Messages: dto.NewTicketMessages(msgs),
	}})
}

// ListTickets GET /tickets. Requesters only see their own tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		TicketSummary: dto.NewTicketSummary(ticket),
		Messages:      dto.NewTicketMessages(msgs),
	}})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, msgs, err := h.service.PostMessage(c.UserContext(), actor, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketThreadResponse{
		Ticket:   dto.NewTicketSummary(ticket),
		Messages: dto.NewTicketMessages(msgs),
	}})
}

// MarkRead POST /tickets/:id/read.
func (h *TicketsHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	n, err := h.service.MarkRead(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": n}})
}

func parseTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	var filter service.TicketListFilter
	for _, s := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	escalated, err := parseBool(c.Query("escalated"))
	if err != nil {
		return filter, err
	}
	filter.Escalated = escalated
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	since, err := parseTime(c.Query("updated_since"))
	if err != nil {
		return filter, err
	}
	filter.UpdatedSince = since
	filter.Limit, filter.Offset = pagination(c, 20)
	return filter, nil
}
