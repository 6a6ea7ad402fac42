package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// TicketFilter captures list parameters. OrganizationID is mandatory.
type TicketFilter struct {
	OrganizationID string
	CreatedBy      *string
	AssignedTo     *string
	Statuses       []domain.TicketStatus
	Escalated      *bool
	UpdatedSince   *time.Time
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes the ticket only if its stored version still equals
	// ticket.Version, then bumps it. ErrStaleTicket otherwise.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListForAnalysis returns escalated or handled tickets updated since the cutoff.
	ListForAnalysis(ctx context.Context, orgID string, since time.Time) ([]domain.Ticket, error)
	// CountHandled counts resolved, closed and auto-resolved tickets.
	CountHandled(ctx context.Context, orgID string) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, organization_id, created_by, created_by_name, message, summary, category,
               status, escalated, ai_mode, confidence, assigned_to, guided, created_at, updated_at, resolved_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (organization_id, created_by, created_by_name, message, summary, category,
            status, escalated, ai_mode, confidence, assigned_to, guided)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at, version`
	return r.pool.QueryRow(ctx, query,
		ticket.OrganizationID,
		ticket.CreatedBy,
		ticket.CreatedByName,
		ticket.Message,
		ticket.Summary,
		ticket.Category,
		ticket.Status,
		ticket.Escalated,
		ticket.AIMode,
		ticket.Confidence,
		ticket.AssignedTo,
		ticket.Guided,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Version)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET summary=$1, category=$2, status=$3, escalated=$4, ai_mode=$5, confidence=$6,
            assigned_to=$7, guided=$8, resolved_at=$9, updated_at=NOW(), version=version+1
        WHERE id=$10 AND organization_id=$11 AND version=$12
        RETURNING updated_at, version`
	err := r.pool.QueryRow(ctx, query,
		ticket.Summary,
		ticket.Category,
		ticket.Status,
		ticket.Escalated,
		ticket.AIMode,
		ticket.Confidence,
		ticket.AssignedTo,
		ticket.Guided,
		ticket.ResolvedAt,
		ticket.ID,
		ticket.OrganizationID,
		ticket.Version,
	).Scan(&ticket.UpdatedAt, &ticket.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleTicket
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND organization_id=$2`
	rows, err := r.pool.Query(ctx, query, id, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"organization_id=$1"}
	args := []any{filter.OrganizationID}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Escalated != nil {
		args = append(args, *filter.Escalated)
		clauses = append(clauses, fmt.Sprintf("escalated=$%d", len(args)))
	}
	if filter.UpdatedSince != nil {
		args = append(args, *filter.UpdatedSince)
		clauses = append(clauses, fmt.Sprintf("updated_at >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListForAnalysis(ctx context.Context, orgID string, since time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE organization_id=$1 AND updated_at >= $2
          AND (escalated OR status IN ('resolved','closed','auto_resolved'))
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, orgID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountHandled(ctx context.Context, orgID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE organization_id=$1 AND status IN ('resolved','closed','auto_resolved')`
	var count int
	err := r.pool.QueryRow(ctx, query, orgID).Scan(&count)
	return count, err
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.OrganizationID,
			&ticket.CreatedBy,
			&ticket.CreatedByName,
			&ticket.Message,
			&ticket.Summary,
			&ticket.Category,
			&ticket.Status,
			&ticket.Escalated,
			&ticket.AIMode,
			&ticket.Confidence,
			&ticket.AssignedTo,
			&ticket.Guided,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ResolvedAt,
			&ticket.Version,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
