package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vicmordi/AIHelpdesk/internal/api/dto"
	"github.com/vicmordi/AIHelpdesk/internal/service"
)

// StaffTicketsHandler handles privileged ticket endpoints.
type StaffTicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService, assignmentService *service.AssignmentService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService, assignments: assignmentService}
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *StaffTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Assign PATCH /tickets/:id/assignee.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignments.Assign(c.UserContext(), actor, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// History GET /tickets/:id/history.
func (h *StaffTicketsHandler) History(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistory(entries)})
}
