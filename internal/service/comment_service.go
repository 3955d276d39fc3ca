package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/events"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
	"github.com/spec-kit/grievance-desk/pkg/util/sanitize"
	"github.com/spec-kit/grievance-desk/pkg/util/validation"
)

// CommentInput is a new thread message. The author is always the acting user.
type CommentInput struct {
	TicketID int64  `json:"ticket_id" validate:"required,gt=0"`
	Message  string `json:"message" validate:"required,max=5000"`
}

// CommentService posts ticket comments and applies the lifecycle reopen rule.
type CommentService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	lifecycle  *LifecycleManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	Lifecycle   *LifecycleManager
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		lifecycle:  deps.Lifecycle,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// AddComment stores a comment authored by actor. End users may only comment on their
// own tickets. The returned ticket reflects any reopen triggered by the comment.
func (s *CommentService) AddComment(ctx context.Context, actor *domain.User, input CommentInput) (*domain.TicketComment, *domain.Ticket, error) {
	if actor == nil {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	input.Message = sanitize.Text(input.Message)
	if err := validation.Struct(input); err != nil {
		return nil, nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewFieldError("ticket_id", "selected ticket does not exist")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if actor.Role == domain.RoleEndUser && ticket.RequesterID != actor.ID {
		return nil, nil, apperrors.NewForbidden("access denied")
	}

	comment := &domain.TicketComment{
		TicketID: ticket.ID,
		UserID:   actor.ID,
		Message:  input.Message,
		Author:   actor,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	if s.lifecycle != nil {
		if _, err := s.lifecycle.OnCommentCreated(ctx, ticket, comment); err != nil {
			return nil, nil, err
		}
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		ActorID:  int64Ptr(actor.ID),
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    actor.ID,
			BodyPreview: stringPreview(comment.Message, 120),
		},
	})
	return comment, ticket, nil
}
