package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// MemberRepository reads organization memberships synced from the identity service.
type MemberRepository interface {
	Upsert(ctx context.Context, member *domain.Member) error
	Get(ctx context.Context, orgID, userID string) (*domain.Member, error)
	// ListByUser returns every membership of a user across organizations.
	ListByUser(ctx context.Context, userID string) ([]domain.Member, error)
	ListOrganizations(ctx context.Context) ([]string, error)
}

type memberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository builds repository.
func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepository{pool: pool}
}

func (r *memberRepository) Upsert(ctx context.Context, m *domain.Member) error {
	const query = `
        INSERT INTO members (organization_id, user_id, name, role, active)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (organization_id, user_id) DO UPDATE SET name=EXCLUDED.name, role=EXCLUDED.role, active=EXCLUDED.active`
	_, err := r.pool.Exec(ctx, query, m.OrganizationID, m.UserID, m.Name, m.Role, m.Active)
	return err
}

func (r *memberRepository) Get(ctx context.Context, orgID, userID string) (*domain.Member, error) {
	const query = `SELECT user_id, organization_id, name, role, active FROM members WHERE organization_id=$1 AND user_id=$2`
	var m domain.Member
	if err := r.pool.QueryRow(ctx, query, orgID, userID).Scan(&m.UserID, &m.OrganizationID, &m.Name, &m.Role, &m.Active); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memberRepository) ListByUser(ctx context.Context, userID string) ([]domain.Member, error) {
	const query = `SELECT user_id, organization_id, name, role, active FROM members WHERE user_id=$1 ORDER BY organization_id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Member, error) {
		var m domain.Member
		err := row.Scan(&m.UserID, &m.OrganizationID, &m.Name, &m.Role, &m.Active)
		return m, err
	})
}

func (r *memberRepository) ListOrganizations(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT organization_id FROM members ORDER BY organization_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
