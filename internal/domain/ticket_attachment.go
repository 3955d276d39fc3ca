package domain

import "time"

// AttachmentKind is the coarse media discriminator.
type AttachmentKind string

const (
	AttachmentKindImage AttachmentKind = "image"
	AttachmentKindVideo AttachmentKind = "video"
)

// TicketAttachment references a stored artifact under the public root.
type TicketAttachment struct {
	ID           int64
	TicketID     int64
	UserID       int64
	Path         string
	OriginalName string
	MimeType     string
	Size         int64
	Kind         AttachmentKind
	CreatedAt    time.Time
}
