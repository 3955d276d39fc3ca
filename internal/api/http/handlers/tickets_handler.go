package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-desk/internal/api/dto"
	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/media"
	"github.com/spec-kit/grievance-desk/internal/service"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints shared by every role.
type TicketsHandler struct {
	tickets    *service.TicketService
	comments   *service.CommentService
	categories *service.CategoryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, comments *service.CommentService, categories *service.CategoryService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, comments: comments, categories: categories}
}

// Dashboard GET /dashboard.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	opts := service.TicketListOptions{
		Statuses:   splitStatuses(c.Query("status")),
		Priorities: splitPriorities(c.Query("priority")),
		Page:       parseInt(c.Query("page"), 1),
		PerPage:    parseInt(c.Query("per_page"), 0),
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		opts.Search = &search
	}
	page, err := h.tickets.ListDashboard(c.UserContext(), user, opts)
	if err != nil {
		return err
	}
	return c.JSON(pageResponse(page))
}

// CreateForm GET /tickets/create returns the active category tree.
func (h *TicketsHandler) CreateForm(c *fiber.Ctx) error {
	tree, err := h.categories.Tree(c.UserContext(), true)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"categories": categoryTree(tree),
		"priorities": domain.TicketPriorities,
	}})
}

// CreateTicket POST /tickets accepts a multipart submission with attachments[] files.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form expected", nil)
	}

	sub, err := submissionFromForm(form)
	if err != nil {
		return err
	}
	sub.IPAddress = c.IP()
	sub.UserAgent = c.Get(fiber.HeaderUserAgent)

	ticket, err := h.tickets.CreateTicket(c.UserContext(), sub, user)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Ticket created successfully.",
		"data":    ticketResponse(ticket),
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
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

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), user, id, service.TicketUpdateInput{
		Subject:     req.Title,
		Description: req.Description,
		AssigneeID:  req.AssignedUserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Ticket updated successfully.", "data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddComment POST /comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, ticket, err := h.comments.AddComment(c.UserContext(), user, service.CommentInput{
		TicketID: req.TicketID,
		Message:  req.Message,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Comment added successfully.",
		"data": fiber.Map{
			"comment":       commentResponse(comment),
			"ticket_status": ticket.Status,
		},
	})
}

func submissionFromForm(form *multipart.Form) (service.TicketSubmission, error) {
	value := func(key string) string {
		if vals := form.Value[key]; len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
		return ""
	}

	sub := service.TicketSubmission{
		Name:        value("name"),
		Email:       value("email"),
		Phone:       value("phone"),
		Subject:     value("subject"),
		Description: value("description"),
		Priority:    domain.TicketPriority(value("priority")),
	}
	if raw := value("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return sub, apperrors.NewFieldError("category", "category must be a valid number")
		}
		sub.CategoryID = id
	}
	if raw := value("sub_category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return sub, apperrors.NewFieldError("sub_category", "sub_category must be a valid number")
		}
		sub.SubCategoryID = &id
	}

	var files []*multipart.FileHeader
	for _, key := range []string{"attachments[]", "attachments"} {
		files = append(files, form.File[key]...)
	}
	for _, header := range files {
		sub.Attachments = append(sub.Attachments, media.FromFileHeader(header))
	}
	return sub, nil
}

func splitStatuses(raw string) []domain.TicketStatus {
	var out []domain.TicketStatus
	for _, part := range strings.Split(raw, ",") {
		if status := domain.TicketStatus(strings.TrimSpace(part)); status.Valid() {
			out = append(out, status)
		}
	}
	return out
}

func splitPriorities(raw string) []domain.TicketPriority {
	var out []domain.TicketPriority
	for _, part := range strings.Split(raw, ",") {
		if priority := domain.TicketPriority(strings.TrimSpace(part)); priority.Valid() {
			out = append(out, priority)
		}
	}
	return out
}
