package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
)

type suggestionRepo Store

func (r *suggestionRepo) store() *Store { return (*Store)(r) }

func cloneSuggestion(sg domain.Suggestion) domain.Suggestion {
	sg.Tags = cloneStrings(sg.Tags)
	sg.RelatedTickets = cloneStrings(sg.RelatedTickets)
	return sg
}

func (r *suggestionRepo) Create(_ context.Context, sg *domain.Suggestion) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sg.ID = newID()
	sg.CreatedAt = now
	sg.UpdatedAt = now
	s.suggestions[sg.ID] = cloneSuggestion(*sg)
	return nil
}

func (r *suggestionRepo) GetByID(_ context.Context, orgID, id string) (*domain.Suggestion, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	sg, ok := s.suggestions[id]
	if !ok || sg.OrganizationID != orgID {
		return nil, errNotFound
	}
	out := cloneSuggestion(sg)
	return &out, nil
}

func (r *suggestionRepo) collect(orgID string, status *domain.SuggestionStatus) []domain.Suggestion {
	s := r.store()
	var out []domain.Suggestion
	for _, sg := range s.suggestions {
		if sg.OrganizationID != orgID {
			continue
		}
		if status != nil && sg.Status != *status {
			continue
		}
		out = append(out, cloneSuggestion(sg))
	}
	return out
}

func (r *suggestionRepo) List(_ context.Context, filter repository.SuggestionFilter) ([]domain.Suggestion, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := r.collect(filter.OrganizationID, filter.Status)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset, 50), nil
}

func (r *suggestionRepo) ListAll(_ context.Context, orgID string) ([]domain.Suggestion, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := r.collect(orgID, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *suggestionRepo) CountByStatus(_ context.Context, orgID string, status domain.SuggestionStatus) (int, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(r.collect(orgID, &status)), nil
}

// draftLocked returns the stored draft or the reason it cannot change.
func (s *Store) draftLocked(sg *domain.Suggestion) (domain.Suggestion, error) {
	current, ok := s.suggestions[sg.ID]
	if !ok || current.OrganizationID != sg.OrganizationID {
		return domain.Suggestion{}, errNotFound
	}
	if current.Status != domain.SuggestionStatusDraft {
		return domain.Suggestion{}, repository.ErrNotDraft
	}
	return current, nil
}

func (r *suggestionRepo) UpdateDraft(_ context.Context, sg *domain.Suggestion) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.draftLocked(sg)
	if err != nil {
		return err
	}
	current.Title = sg.Title
	current.Content = sg.Content
	current.Category = sg.Category
	current.UpdatedAt = s.now()
	s.suggestions[sg.ID] = current
	sg.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *suggestionRepo) Approve(_ context.Context, sg *domain.Suggestion, article *domain.KnowledgeArticle, reviewer string, at time.Time) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.draftLocked(sg)
	if err != nil {
		return err
	}
	s.insertArticleLocked(article)
	current.Status = domain.SuggestionStatusApproved
	current.LinkedKBID = &article.ID
	current.ReviewedBy = &reviewer
	current.ReviewedAt = &at
	current.UpdatedAt = at
	s.suggestions[sg.ID] = current
	*sg = cloneSuggestion(current)
	return nil
}

func (r *suggestionRepo) Reject(_ context.Context, sg *domain.Suggestion, reviewer string, reason *string, at time.Time) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.draftLocked(sg)
	if err != nil {
		return err
	}
	current.Status = domain.SuggestionStatusRejected
	current.DecisionReason = reason
	current.ReviewedBy = &reviewer
	current.ReviewedAt = &at
	current.UpdatedAt = at
	s.suggestions[sg.ID] = current
	*sg = cloneSuggestion(current)
	return nil
}
