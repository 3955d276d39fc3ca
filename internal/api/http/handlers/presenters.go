package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-desk/internal/api/dto"
	"github.com/spec-kit/grievance-desk/internal/auth"
	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/service"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user := auth.CurrentUser(c)
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return user, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound(name, map[string]any{name: c.Params(name)})
	}
	return id, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func userResponse(user *domain.User) *dto.UserResponse {
	if user == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		RoleID:    user.Role,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func userSummary(user *domain.User) *dto.UserSummary {
	if user == nil {
		return nil
	}
	return &dto.UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Phone: user.Phone}
}

func categoryResponse(category *domain.Category) *dto.CategoryResponse {
	if category == nil {
		return nil
	}
	resp := &dto.CategoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ParentID:    category.ParentID,
		IsActive:    category.IsActive,
	}
	for i := range category.Children {
		resp.Children = append(resp.Children, *categoryResponse(&category.Children[i]))
	}
	return resp
}

func categoryTree(categories []domain.Category) []dto.CategoryResponse {
	out := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		out = append(out, *categoryResponse(&categories[i]))
	}
	return out
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:            ticket.ID,
		TicketNumber:  ticket.TicketNumber,
		Subject:       ticket.Subject,
		Description:   ticket.Description,
		Priority:      ticket.Priority,
		Status:        ticket.Status,
		Source:        ticket.Source,
		RequesterID:   ticket.RequesterID,
		CategoryID:    ticket.CategoryID,
		SubCategoryID: ticket.SubCategoryID,
		AssigneeID:    ticket.AssigneeID,
		CreatedByID:   ticket.CreatedByID,
		DueDate:       ticket.DueDate,
		ResolvedAt:    ticket.ResolvedAt,
		ClosedAt:      ticket.ClosedAt,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		Requester:     userSummary(ticket.Requester),
		Assignee:      userSummary(ticket.Assignee),
		Category:      categoryResponse(ticket.Category),
		SubCategory:   categoryResponse(ticket.SubCategory),
	}
	for i := range ticket.Comments {
		resp.Comments = append(resp.Comments, commentResponse(&ticket.Comments[i]))
	}
	for i := range ticket.Attachments {
		resp.Attachments = append(resp.Attachments, attachmentResponse(&ticket.Attachments[i]))
	}
	return resp
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	out := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, ticketResponse(&tickets[i]))
	}
	return out
}

func commentResponse(comment *domain.TicketComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		UserID:    comment.UserID,
		Message:   comment.Message,
		Author:    userSummary(comment.Author),
		CreatedAt: comment.CreatedAt,
	}
}

// attachmentResponse exposes the stored path as a URL under the static /tickets mount.
func attachmentResponse(att *domain.TicketAttachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:           att.ID,
		Path:         att.Path,
		URL:          "/" + att.Path,
		OriginalName: att.OriginalName,
		MimeType:     att.MimeType,
		Size:         att.Size,
		Kind:         att.Kind,
		CreatedAt:    att.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.HistoryResponse {
	resp := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			ChangedBy:   entry.ChangedByName,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}

func pageResponse(page *service.TicketPage) fiber.Map {
	lastPage := 1
	if page.PerPage > 0 && page.Total > 0 {
		lastPage = int((page.Total + int64(page.PerPage) - 1) / int64(page.PerPage))
	}
	return fiber.Map{
		"data": ticketResponses(page.Items),
		"meta": dto.PageMeta{Page: page.Page, PerPage: page.PerPage, Total: page.Total, LastPage: lastPage},
	}
}
