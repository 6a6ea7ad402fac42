package service

import (
	"context"
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// AnalyticsSummary is the knowledge improvement dashboard.
type AnalyticsSummary struct {
	RecurringIssuesThisMonth int
	PendingSuggestions       int
	ApprovedSuggestions      int
	RejectedSuggestions      int
	HandledTickets           int
	HandledSinceLastRun      int
	LastRunAt                *time.Time
	LastRunNewDrafts         []string
	LastRunRejected          []string
	LastRunApproved          []string
	LastRunCovered           []string
	LastRunSkippedTickets    []string
}

// AnalyticsService reads analysis bookkeeping.
type AnalyticsService struct {
	tickets     repository.TicketRepository
	suggestions repository.SuggestionRepository
	states      repository.AnalysisStateRepository
	now         func() time.Time
}

// NewAnalyticsService creates the service.
func NewAnalyticsService(tickets repository.TicketRepository, suggestions repository.SuggestionRepository, states repository.AnalysisStateRepository) *AnalyticsService {
	return &AnalyticsService{
		tickets:     tickets,
		suggestions: suggestions,
		states:      states,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the organization's knowledge improvement figures.
func (s *AnalyticsService) Summary(ctx context.Context, actor domain.Actor) (*AnalyticsSummary, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	orgID := actor.OrganizationID
	state, err := s.states.Get(ctx, orgID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	summary := &AnalyticsSummary{
		LastRunAt:             state.LastRunAt,
		LastRunNewDrafts:      state.LastRunNewDrafts,
		LastRunRejected:       state.LastRunRejected,
		LastRunApproved:       state.LastRunApproved,
		LastRunCovered:        state.LastRunCovered,
		LastRunSkippedTickets: state.LastRunSkippedTickets,
	}
	if state.LastRunAt != nil && sameMonth(*state.LastRunAt, s.now()) {
		summary.RecurringIssuesThisMonth = state.RecurringIssuesDetected
	}

	counts := []struct {
		status domain.SuggestionStatus
		dst    *int
	}{
		{domain.SuggestionStatusDraft, &summary.PendingSuggestions},
		{domain.SuggestionStatusApproved, &summary.ApprovedSuggestions},
		{domain.SuggestionStatusRejected, &summary.RejectedSuggestions},
	}
	for _, c := range counts {
		n, err := s.suggestions.CountByStatus(ctx, orgID, c.status)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		*c.dst = n
	}

	handled, err := s.tickets.CountHandled(ctx, orgID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	summary.HandledTickets = handled
	if since := handled - state.ResolvedCountAtLastRun; since > 0 {
		summary.HandledSinceLastRun = since
	}
	return summary, nil
}

func sameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
