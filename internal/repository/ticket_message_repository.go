package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// UnreadQuery selects the messages counted as unread for one reader.
type UnreadQuery struct {
	OrganizationID string
	Senders        []domain.MessageSender
	CreatedBy      *string
	AssignedTo     *string
}

// TicketMessageRepository manages ticket thread messages.
type TicketMessageRepository interface {
	// Append stores msg with the next sequence number of its ticket.
	Append(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
	ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.TicketMessage, error)
	// MarkRead flags unread messages from the given senders and returns how many flipped.
	MarkRead(ctx context.Context, ticketID string, senders []domain.MessageSender) (int64, error)
	CountUnread(ctx context.Context, q UnreadQuery) (int, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

const messageColumns = `id, ticket_id, seq, sender, sender_id, sender_name, sender_role, body, is_read, options, created_at`

func (r *ticketMessageRepository) Append(ctx context.Context, msg *domain.TicketMessage) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// row lock on the parent ticket keeps concurrent appends in arrival order
	if _, err := tx.Exec(ctx, `SELECT 1 FROM tickets WHERE id=$1 FOR UPDATE`, msg.TicketID); err != nil {
		return err
	}
	const query = `
        INSERT INTO ticket_messages (ticket_id, seq, sender, sender_id, sender_name, sender_role, body, is_read, options)
        VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM ticket_messages WHERE ticket_id=$1), $2,$3,$4,$5,$6,$7,$8)
        RETURNING id, seq, created_at`
	if err := tx.QueryRow(ctx, query,
		msg.TicketID,
		msg.Sender,
		msg.SenderID,
		msg.SenderName,
		msg.SenderRole,
		msg.Body,
		msg.IsRead,
		msg.Options,
	).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM ticket_messages WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *ticketMessageRepository) ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.TicketMessage, error) {
	result := make(map[string][]domain.TicketMessage, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + messageColumns + ` FROM ticket_messages WHERE ticket_id = ANY($1) ORDER BY ticket_id, seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		result[m.TicketID] = append(result[m.TicketID], m)
	}
	return result, nil
}

func (r *ticketMessageRepository) MarkRead(ctx context.Context, ticketID string, senders []domain.MessageSender) (int64, error) {
	if len(senders) == 0 {
		return 0, nil
	}
	cmd, err := r.pool.Exec(ctx,
		`UPDATE ticket_messages SET is_read=TRUE WHERE ticket_id=$1 AND NOT is_read AND sender = ANY($2)`,
		ticketID, senderStrings(senders))
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketMessageRepository) CountUnread(ctx context.Context, q UnreadQuery) (int, error) {
	clauses := []string{"t.organization_id=$1", "NOT m.is_read", "m.sender = ANY($2)"}
	args := []any{q.OrganizationID, senderStrings(q.Senders)}
	if q.CreatedBy != nil {
		args = append(args, *q.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if q.AssignedTo != nil {
		args = append(args, *q.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	query := `SELECT COUNT(*) FROM ticket_messages m JOIN tickets t ON t.id = m.ticket_id WHERE ` +
		strings.Join(clauses, " AND ")
	var count int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func senderStrings(senders []domain.MessageSender) []string {
	out := make([]string, len(senders))
	for i, s := range senders {
		out[i] = string(s)
	}
	return out
}

func scanMessages(rows pgx.Rows) ([]domain.TicketMessage, error) {
	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Seq,
			&msg.Sender,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderRole,
			&msg.Body,
			&msg.IsRead,
			&msg.Options,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
