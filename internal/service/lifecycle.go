package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/events"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

const (
	triggerStaffUpdate      = "staff_update"
	triggerRequesterComment = "requester_comment"
)

// ApplyStatus moves ticket to status and maintains the terminal timestamps: closed
// stamps closed_at and clears resolved_at, resolved does the inverse, and every other
// status clears both. The assignee changes only when assigneeID is non-nil.
func ApplyStatus(ticket *domain.Ticket, status domain.TicketStatus, assigneeID *int64, now time.Time) {
	ticket.Status = status
	if assigneeID != nil {
		id := *assigneeID
		ticket.AssigneeID = &id
	}
	switch status {
	case domain.TicketStatusClosed:
		ticket.ClosedAt = &now
		ticket.ResolvedAt = nil
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
		ticket.ClosedAt = nil
	default:
		ticket.ResolvedAt = nil
		ticket.ClosedAt = nil
	}
}

// LifecycleManager owns every status transition. Any status is reachable from any
// other; the only automatic transition is the requester-comment reopen rule.
type LifecycleManager struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle manager.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewLifecycleManager constructs the manager.
func NewLifecycleManager(deps LifecycleDependencies) *LifecycleManager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &LifecycleManager{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// SetStatus applies a transition, persists it and records history. actorID may be nil
// for system-driven changes.
func (m *LifecycleManager) SetStatus(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, assigneeID, actorID *int64) error {
	return m.transition(ctx, ticket, status, assigneeID, actorID, triggerStaffUpdate)
}

// OnCommentCreated evaluates the reopen rule: a comment by the ticket's requester on a
// closed ticket moves it to reopened. It reports whether the ticket was reopened.
func (m *LifecycleManager) OnCommentCreated(ctx context.Context, ticket *domain.Ticket, comment *domain.TicketComment) (bool, error) {
	if ticket == nil || comment == nil {
		return false, nil
	}
	if comment.UserID != ticket.RequesterID || ticket.Status != domain.TicketStatusClosed {
		return false, nil
	}
	if err := m.transition(ctx, ticket, domain.TicketStatusReopened, nil, int64Ptr(comment.UserID), triggerRequesterComment); err != nil {
		return false, err
	}
	return true, nil
}

func (m *LifecycleManager) transition(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, assigneeID, actorID *int64, trigger string) error {
	if !status.Valid() {
		return apperrors.NewFieldError("status", "status must be one of [open in_progress resolved closed reopened]")
	}
	oldStatus := ticket.Status
	oldAssignee := ticket.AssigneeID

	ApplyStatus(ticket, status, assigneeID, m.now())
	if err := m.tickets.Update(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}

	if err := m.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticket.ID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": oldStatus},
		NewValue:    map[string]any{"status": status, "trigger": trigger},
	}); err != nil {
		return apperrors.MapError(err)
	}
	if !sameID(oldAssignee, ticket.AssigneeID) {
		if err := recordAssigneeChange(ctx, m.history, actorID, ticket.ID, oldAssignee, ticket.AssigneeID); err != nil {
			return apperrors.MapError(err)
		}
	}

	publishEvent(ctx, m.dispatcher, m.logger, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: status,
			Trigger:   trigger,
		},
	})
	return nil
}

func recordAssigneeChange(ctx context.Context, history repository.TicketHistoryRepository, actorID *int64, ticketID int64, oldAssignee, newAssignee *int64) error {
	return history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue:    map[string]any{"assignee_id": oldAssignee},
		NewValue:    map[string]any{"assignee_id": newAssignee},
	})
}
