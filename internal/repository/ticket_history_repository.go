package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// TicketHistoryRepository keeps the append-only audit trail of a ticket.
type TicketHistoryRepository interface {
	// Append stores one change. ID and CreatedAt are filled in.
	Append(ctx context.Context, entry *domain.TicketHistory) error
	// ListByTicket returns the trail oldest first, scoped to the organization.
	ListByTicket(ctx context.Context, orgID, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository returns the Postgres audit trail.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, entry *domain.TicketHistory) error {
	if !entry.ChangeType.Valid() {
		return fmt.Errorf("unknown change type %q", entry.ChangeType)
	}
	oldValue, err := encodeChange(entry.OldValue)
	if err != nil {
		return err
	}
	newValue, err := encodeChange(entry.NewValue)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
        INSERT INTO ticket_history (ticket_id, organization_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        SELECT t.id, t.organization_id, $3, $4, $5, $6, $7
        FROM tickets t WHERE t.id=$1 AND t.organization_id=$2
        RETURNING id, created_at`,
		entry.TicketID, entry.OrganizationID, entry.ChangedByType, entry.ChangedByID,
		entry.ChangeType, oldValue, newValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, orgID, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ticket_id, organization_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history
        WHERE organization_id=$1 AND ticket_id=$2
        ORDER BY created_at, id`, orgID, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistoryEntry)
}

func scanHistoryEntry(row pgx.CollectableRow) (domain.TicketHistory, error) {
	var (
		entry         domain.TicketHistory
		before, after []byte
	)
	err := row.Scan(
		&entry.ID, &entry.TicketID, &entry.OrganizationID,
		&entry.ChangedByType, &entry.ChangedByID, &entry.ChangeType,
		&before, &after, &entry.CreatedAt,
	)
	if err != nil {
		return entry, err
	}
	if entry.OldValue, err = decodeChange(before); err != nil {
		return entry, err
	}
	entry.NewValue, err = decodeChange(after)
	return entry, err
}

// encodeChange stores an empty change as SQL NULL.
func encodeChange(v map[string]any) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode change: %w", err)
	}
	return b, nil
}

func decodeChange(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	return v, nil
}
