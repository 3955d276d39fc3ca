package domain

import "time"

// TicketComment is a message in a ticket thread.
type TicketComment struct {
	ID        int64
	TicketID  int64
	UserID    int64
	Message   string
	Author    *User
	CreatedAt time.Time
	UpdatedAt time.Time
}
