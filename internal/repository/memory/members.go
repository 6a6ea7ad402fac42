package memory

import (
	"context"
	"sort"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

type memberRepo Store

func (r *memberRepo) store() *Store { return (*Store)(r) }

func memberKey(orgID, userID string) string {
	return orgID + "/" + userID
}

func (r *memberRepo) Upsert(_ context.Context, m *domain.Member) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey(m.OrganizationID, m.UserID)] = *m
	return nil
}

func (r *memberRepo) Get(_ context.Context, orgID, userID string) (*domain.Member, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey(orgID, userID)]
	if !ok {
		return nil, errNotFound
	}
	return &m, nil
}

func (r *memberRepo) ListByUser(_ context.Context, userID string) ([]domain.Member, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Member
	for _, m := range s.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrganizationID < out[j].OrganizationID })
	return out, nil
}

func (r *memberRepo) ListOrganizations(_ context.Context) ([]string, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, m := range s.members {
		seen[m.OrganizationID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for org := range seen {
		out = append(out, org)
	}
	sort.Strings(out)
	return out, nil
}

type analysisRepo Store

func (r *analysisRepo) store() *Store { return (*Store)(r) }

func (r *analysisRepo) Get(_ context.Context, orgID string) (*domain.AnalysisState, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[orgID]
	if !ok {
		return &domain.AnalysisState{OrganizationID: orgID}, nil
	}
	return &st, nil
}

func (r *analysisRepo) Save(_ context.Context, st *domain.AnalysisState) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	st.UpdatedAt = s.now()
	s.states[st.OrganizationID] = *st
	return nil
}

type settingsRepo Store

func (r *settingsRepo) store() *Store { return (*Store)(r) }

func (r *settingsRepo) Get(_ context.Context, orgID string) (*domain.OrgSettings, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[orgID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *settingsRepo) Upsert(_ context.Context, st *domain.OrgSettings) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[st.OrganizationID] = *st
	return nil
}
