package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/events"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	historyRepo repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		historyRepo: deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// AssignTicket hands a ticket to an existing staff account. Only administrators may assign.
func (s *AssignmentService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID int64) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	assignee, err := s.loadAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if err := s.apply(ctx, actor, ticket, assignee); err != nil {
		return nil, err
	}
	return ticket, nil
}

// loadAssignee resolves an assignee id, reporting a field error when it does not exist.
func (s *AssignmentService) loadAssignee(ctx context.Context, assigneeID int64) (*domain.User, error) {
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewFieldError("assigned_to", "selected user does not exist")
		}
		return nil, apperrors.MapError(err)
	}
	return assignee, nil
}

func (s *AssignmentService) apply(ctx context.Context, actor *domain.User, ticket *domain.Ticket, assignee *domain.User) error {
	oldAssignee := ticket.AssigneeID
	if oldAssignee != nil && *oldAssignee == assignee.ID {
		ticket.Assignee = assignee
		return nil
	}
	ticket.AssigneeID = int64Ptr(assignee.ID)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}
	ticket.Assignee = assignee
	if err := recordAssigneeChange(ctx, s.historyRepo, int64Ptr(actor.ID), ticket.ID, oldAssignee, ticket.AssigneeID); err != nil {
		return apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  int64Ptr(actor.ID),
		Payload: events.TicketAssignedPayload{
			OldAssigneeID: oldAssignee,
			NewAssigneeID: ticket.AssigneeID,
		},
	})
	return nil
}

func requireAdmin(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

func requireStaff(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.IsStaff() {
		return apperrors.NewForbidden("staff role required")
	}
	return nil
}
