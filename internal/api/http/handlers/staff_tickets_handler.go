package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-desk/internal/api/dto"
	"github.com/spec-kit/grievance-desk/internal/service"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

// StaffTicketsHandler exposes staff and administrator ticket operations.
type StaffTicketsHandler struct {
	tickets *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(tickets *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: tickets}
}

// UpdateStatus PATCH /admin/tickets/:id/update-status (also /tickets/:id/status).
func (h *StaffTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), user, id, req.Status, req.Assignee())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Ticket status updated successfully.", "data": ticketResponse(ticket)})
}

// Assign PATCH /admin/tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssignedTo <= 0 {
		return apperrors.NewFieldError("assigned_to", "assigned_to is required")
	}
	ticket, err := h.tickets.AssignTicket(c.UserContext(), user, id, req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Ticket assigned successfully.", "data": ticketResponse(ticket)})
}

// List GET /admin/tickets.
func (h *StaffTicketsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := h.tickets.ListAdminTickets(c.UserContext(), user, parseInt(c.Query("page"), 1))
	if err != nil {
		return err
	}
	return c.JSON(pageResponse(page))
}

// Show GET /admin/tickets/:id.
func (h *StaffTicketsHandler) Show(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Dashboard GET /admin/dashboard.
func (h *StaffTicketsHandler) Dashboard(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	board, err := h.tickets.Dashboard(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		TotalTickets:  board.Stats.Total,
		ByStatus:      board.Stats.ByStatus,
		ByPriority:    board.Stats.ByPriority,
		LatestTickets: ticketResponses(board.LatestTickets),
		NewUsersToday: board.NewUsersToday,
	}})
}
