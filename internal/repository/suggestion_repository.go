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

// SuggestionFilter captures list parameters.
type SuggestionFilter struct {
	OrganizationID string
	Status         *domain.SuggestionStatus
	Limit          int
	Offset         int
}

// SuggestionRepository persists drafted knowledge suggestions. Status changes
// only apply while the row is still a draft.
type SuggestionRepository interface {
	Create(ctx context.Context, s *domain.Suggestion) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Suggestion, error)
	List(ctx context.Context, filter SuggestionFilter) ([]domain.Suggestion, error)
	// ListAll returns every suggestion of the organization for dedup checks.
	ListAll(ctx context.Context, orgID string) ([]domain.Suggestion, error)
	CountByStatus(ctx context.Context, orgID string, status domain.SuggestionStatus) (int, error)
	// UpdateDraft rewrites editable fields; ErrNotDraft when no longer a draft.
	UpdateDraft(ctx context.Context, s *domain.Suggestion) error
	// Approve publishes article and marks the suggestion approved atomically.
	Approve(ctx context.Context, s *domain.Suggestion, article *domain.KnowledgeArticle, reviewer string, at time.Time) error
	// Reject marks the suggestion rejected; ErrNotDraft when no longer a draft.
	Reject(ctx context.Context, s *domain.Suggestion, reviewer string, reason *string, at time.Time) error
}

type suggestionRepository struct {
	pool *pgxpool.Pool
}

// NewSuggestionRepository builds repository.
func NewSuggestionRepository(pool *pgxpool.Pool) SuggestionRepository {
	return &suggestionRepository{pool: pool}
}

const suggestionColumns = `id, organization_id, cluster_id, topic_signature, normalized_topic, title, category, content,
               tags, cluster_summary, status, confidence_score, ticket_count, related_tickets, decision_reason,
               linked_kb_id, reviewed_by, reviewed_at, created_at, updated_at`

func (r *suggestionRepository) Create(ctx context.Context, s *domain.Suggestion) error {
	const query = `
        INSERT INTO suggestions (organization_id, cluster_id, topic_signature, normalized_topic, title, category, content,
            tags, cluster_summary, status, confidence_score, ticket_count, related_tickets)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		s.OrganizationID,
		s.ClusterID,
		s.TopicSignature,
		s.NormalizedTopic,
		s.Title,
		s.Category,
		s.Content,
		nonNil(s.Tags),
		s.ClusterSummary,
		s.Status,
		s.ConfidenceScore,
		s.TicketCount,
		nonNil(s.RelatedTickets),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *suggestionRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id=$1 AND organization_id=$2`
	rows, err := r.pool.Query(ctx, query, id, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanSuggestions(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &list[0], nil
}

func (r *suggestionRepository) List(ctx context.Context, filter SuggestionFilter) ([]domain.Suggestion, error) {
	clauses := []string{"organization_id=$1"}
	args := []any{filter.OrganizationID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM suggestions WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		suggestionColumns, strings.Join(clauses, " AND "), limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

func (r *suggestionRepository) ListAll(ctx context.Context, orgID string) ([]domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE organization_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

func (r *suggestionRepository) CountByStatus(ctx context.Context, orgID string, status domain.SuggestionStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM suggestions WHERE organization_id=$1 AND status=$2`, orgID, status).Scan(&count)
	return count, err
}

func (r *suggestionRepository) UpdateDraft(ctx context.Context, s *domain.Suggestion) error {
	const query = `
        UPDATE suggestions SET title=$1, content=$2, category=$3, updated_at=NOW()
        WHERE id=$4 AND organization_id=$5 AND status='draft'
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, s.Title, s.Content, s.Category, s.ID, s.OrganizationID).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotDraft
	}
	return err
}

func (r *suggestionRepository) Approve(ctx context.Context, s *domain.Suggestion, article *domain.KnowledgeArticle, reviewer string, at time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `
        UPDATE suggestions SET status='approved', reviewed_by=$1, reviewed_at=$2, updated_at=NOW()
        WHERE id=$3 AND organization_id=$4 AND status='draft'`,
		reviewer, at, s.ID, s.OrganizationID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotDraft
	}
	if err := createArticle(ctx, tx, article); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE suggestions SET linked_kb_id=$1 WHERE id=$2`, article.ID, s.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.Status = domain.SuggestionStatusApproved
	s.LinkedKBID = &article.ID
	s.ReviewedBy = &reviewer
	s.ReviewedAt = &at
	s.UpdatedAt = at
	return nil
}

func (r *suggestionRepository) Reject(ctx context.Context, s *domain.Suggestion, reviewer string, reason *string, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE suggestions SET status='rejected', decision_reason=$1, reviewed_by=$2, reviewed_at=$3, updated_at=NOW()
        WHERE id=$4 AND organization_id=$5 AND status='draft'`,
		reason, reviewer, at, s.ID, s.OrganizationID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotDraft
	}
	s.Status = domain.SuggestionStatusRejected
	s.DecisionReason = reason
	s.ReviewedBy = &reviewer
	s.ReviewedAt = &at
	s.UpdatedAt = at
	return nil
}

func scanSuggestions(rows pgx.Rows) ([]domain.Suggestion, error) {
	var result []domain.Suggestion
	for rows.Next() {
		var s domain.Suggestion
		if err := rows.Scan(
			&s.ID,
			&s.OrganizationID,
			&s.ClusterID,
			&s.TopicSignature,
			&s.NormalizedTopic,
			&s.Title,
			&s.Category,
			&s.Content,
			&s.Tags,
			&s.ClusterSummary,
			&s.Status,
			&s.ConfidenceScore,
			&s.TicketCount,
			&s.RelatedTickets,
			&s.DecisionReason,
			&s.LinkedKBID,
			&s.ReviewedBy,
			&s.ReviewedAt,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
