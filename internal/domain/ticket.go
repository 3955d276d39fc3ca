package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusReopened   TicketStatus = "reopened"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
	TicketStatusReopened,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// TicketPriorities lists every priority.
var TicketPriorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p == TicketPriorityLow || p == TicketPriorityMedium || p == TicketPriorityHigh
}

// TicketSourceWeb marks tickets submitted through the web form.
const TicketSourceWeb = "web"

// Ticket is the aggregate for grievances.
type Ticket struct {
	ID            int64
	TicketNumber  string
	RequesterID   int64
	CategoryID    int64
	SubCategoryID *int64
	AssigneeID    *int64
	CreatedByID   *int64
	Subject       string
	Description   string
	Priority      TicketPriority
	Status        TicketStatus
	Source        string
	IPAddress     string
	UserAgent     string
	DueDate       *time.Time
	ResolvedAt    *time.Time
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Requester   *User
	Assignee    *User
	Category    *Category
	SubCategory *Category
	Comments    []TicketComment
	Attachments []TicketAttachment
}

// TicketStats summarizes ticket counts for the admin dashboard.
type TicketStats struct {
	Total      int64
	ByStatus   map[TicketStatus]int64
	ByPriority map[TicketPriority]int64
}
