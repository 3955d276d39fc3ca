package dto

import (
	"time"

	"github.com/spec-kit/grievance-desk/internal/domain"
)

// UpdateTicketRequest payload.
type UpdateTicketRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	AssignedUserID *int64 `json:"assigned_user_id"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssignedTo int64 `json:"assigned_to"`
}

// UpdateStatusRequest payload. assigned_to is accepted as an older alias of
// assigned_user_id.
type UpdateStatusRequest struct {
	Status         domain.TicketStatus `json:"status"`
	AssignedUserID *int64              `json:"assigned_user_id"`
	AssignedTo     *int64              `json:"assigned_to"`
}

// Assignee returns the requested assignee, or nil to keep the current one.
func (r UpdateStatusRequest) Assignee() *int64 {
	if r.AssignedUserID != nil {
		return r.AssignedUserID
	}
	return r.AssignedTo
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	TicketID int64  `json:"ticket_id"`
	Message  string `json:"message"`
}

// TicketResponse represents a ticket with its loaded relations.
type TicketResponse struct {
	ID            int64                 `json:"id"`
	TicketNumber  string                `json:"ticket_number"`
	Subject       string                `json:"subject"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	Source        string                `json:"source"`
	RequesterID   int64                 `json:"user_id"`
	CategoryID    int64                 `json:"category_id"`
	SubCategoryID *int64                `json:"sub_category_id"`
	AssigneeID    *int64                `json:"assigned_to"`
	CreatedByID   *int64                `json:"created_by"`
	DueDate       *time.Time            `json:"due_date"`
	ResolvedAt    *time.Time            `json:"resolved_at"`
	ClosedAt      *time.Time            `json:"closed_at"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Requester     *UserSummary          `json:"user,omitempty"`
	Assignee      *UserSummary          `json:"assigned_user,omitempty"`
	Category      *CategoryResponse     `json:"category,omitempty"`
	SubCategory   *CategoryResponse     `json:"sub_category,omitempty"`
	Comments      []CommentResponse     `json:"comments,omitempty"`
	Attachments   []AttachmentResponse  `json:"attachments,omitempty"`
}

// CommentResponse represents a thread message.
type CommentResponse struct {
	ID        int64        `json:"id"`
	TicketID  int64        `json:"ticket_id"`
	UserID    int64        `json:"user_id"`
	Message   string       `json:"message"`
	Author    *UserSummary `json:"user,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID           int64                 `json:"id"`
	Path         string                `json:"path"`
	URL          string                `json:"url"`
	OriginalName string                `json:"original_name"`
	MimeType     string                `json:"mime_type"`
	Size         int64                 `json:"size"`
	Kind         domain.AttachmentKind `json:"type"`
	CreatedAt    time.Time             `json:"created_at"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          int64                   `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *int64                  `json:"changed_by"`
	ChangedBy   string                  `json:"changed_by_name,omitempty"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// PageMeta describes pagination.
type PageMeta struct {
	Page     int   `json:"current_page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}

// DashboardResponse is the administrator overview.
type DashboardResponse struct {
	TotalTickets  int64                           `json:"total_tickets"`
	ByStatus      map[domain.TicketStatus]int64   `json:"by_status"`
	ByPriority    map[domain.TicketPriority]int64 `json:"by_priority"`
	LatestTickets []TicketResponse                `json:"latest_tickets"`
	NewUsersToday int64                           `json:"new_users_today"`
}
