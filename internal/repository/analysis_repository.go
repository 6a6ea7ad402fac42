package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// AnalysisStateRepository keeps per-organization analysis bookkeeping.
type AnalysisStateRepository interface {
	// Get returns the stored state, or a zero state for organizations never analyzed.
	Get(ctx context.Context, orgID string) (*domain.AnalysisState, error)
	Save(ctx context.Context, state *domain.AnalysisState) error
}

// OrgSettingsRepository reads per-organization threshold overrides.
type OrgSettingsRepository interface {
	// Get returns nil when the organization has no overrides.
	Get(ctx context.Context, orgID string) (*domain.OrgSettings, error)
	Upsert(ctx context.Context, settings *domain.OrgSettings) error
}

type analysisStateRepository struct {
	pool *pgxpool.Pool
}

// NewAnalysisStateRepository builds repository.
func NewAnalysisStateRepository(pool *pgxpool.Pool) AnalysisStateRepository {
	return &analysisStateRepository{pool: pool}
}

func (r *analysisStateRepository) Get(ctx context.Context, orgID string) (*domain.AnalysisState, error) {
	const query = `
        SELECT organization_id, last_run_at, recurring_issues_detected, resolved_count_at_last_run,
               last_run_new_drafts, last_run_rejected, last_run_covered, last_run_approved, last_run_skipped_tickets, updated_at
        FROM analysis_state WHERE organization_id=$1`
	var s domain.AnalysisState
	err := r.pool.QueryRow(ctx, query, orgID).Scan(
		&s.OrganizationID,
		&s.LastRunAt,
		&s.RecurringIssuesDetected,
		&s.ResolvedCountAtLastRun,
		&s.LastRunNewDrafts,
		&s.LastRunRejected,
		&s.LastRunCovered,
		&s.LastRunApproved,
		&s.LastRunSkippedTickets,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.AnalysisState{OrganizationID: orgID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *analysisStateRepository) Save(ctx context.Context, s *domain.AnalysisState) error {
	const query = `
        INSERT INTO analysis_state (organization_id, last_run_at, recurring_issues_detected, resolved_count_at_last_run,
            last_run_new_drafts, last_run_rejected, last_run_covered, last_run_approved, last_run_skipped_tickets)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (organization_id) DO UPDATE SET
            last_run_at=EXCLUDED.last_run_at,
            recurring_issues_detected=EXCLUDED.recurring_issues_detected,
            resolved_count_at_last_run=EXCLUDED.resolved_count_at_last_run,
            last_run_new_drafts=EXCLUDED.last_run_new_drafts,
            last_run_rejected=EXCLUDED.last_run_rejected,
            last_run_covered=EXCLUDED.last_run_covered,
            last_run_approved=EXCLUDED.last_run_approved,
            last_run_skipped_tickets=EXCLUDED.last_run_skipped_tickets,
            updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		s.OrganizationID,
		s.LastRunAt,
		s.RecurringIssuesDetected,
		s.ResolvedCountAtLastRun,
		nonNil(s.LastRunNewDrafts),
		nonNil(s.LastRunRejected),
		nonNil(s.LastRunCovered),
		nonNil(s.LastRunApproved),
		nonNil(s.LastRunSkippedTickets),
	).Scan(&s.UpdatedAt)
}

type orgSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewOrgSettingsRepository builds repository.
func NewOrgSettingsRepository(pool *pgxpool.Pool) OrgSettingsRepository {
	return &orgSettingsRepository{pool: pool}
}

func (r *orgSettingsRepository) Get(ctx context.Context, orgID string) (*domain.OrgSettings, error) {
	const query = `
        SELECT organization_id, auto_resolve_threshold, match_threshold, min_cluster_size, similarity_threshold
        FROM org_settings WHERE organization_id=$1`
	var s domain.OrgSettings
	err := r.pool.QueryRow(ctx, query, orgID).Scan(
		&s.OrganizationID, &s.AutoResolveThreshold, &s.MatchThreshold, &s.MinClusterSize, &s.SimilarityThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *orgSettingsRepository) Upsert(ctx context.Context, s *domain.OrgSettings) error {
	const query = `
        INSERT INTO org_settings (organization_id, auto_resolve_threshold, match_threshold, min_cluster_size, similarity_threshold)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (organization_id) DO UPDATE SET
            auto_resolve_threshold=EXCLUDED.auto_resolve_threshold,
            match_threshold=EXCLUDED.match_threshold,
            min_cluster_size=EXCLUDED.min_cluster_size,
            similarity_threshold=EXCLUDED.similarity_threshold,
            updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, s.OrganizationID, s.AutoResolveThreshold, s.MatchThreshold, s.MinClusterSize, s.SimilarityThreshold)
	return err
}
