package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-desk/internal/domain"
)

// TicketHistoryRepository stores the append-only audit trail of status and assignee changes.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.ChangedByID,
		history.ChangeType,
		jsonObject(history.OldValue),
		jsonObject(history.NewValue),
	).Scan(&history.ID, &history.CreatedAt)
	return mapWriteError(err)
}

// ListByTicket returns entries oldest first with the acting user's name resolved.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	const query = `
        SELECT h.id, h.ticket_id, h.changed_by_id, COALESCE(u.name, ''), h.change_type,
               h.old_value, h.new_value, h.created_at
        FROM ticket_history h
        LEFT JOIN users u ON u.id = h.changed_by_id
        WHERE h.ticket_id=$1
        ORDER BY h.created_at ASC, h.id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		var entry domain.TicketHistory
		err := row.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ChangedByID,
			&entry.ChangedByName,
			&entry.ChangeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		)
		return entry, err
	})
}

// jsonObject keeps NOT NULL jsonb columns at {} instead of null.
func jsonObject(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
