package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
)

type knowledgeRepo Store

func (r *knowledgeRepo) store() *Store { return (*Store)(r) }

func (s *Store) insertArticleLocked(a *domain.KnowledgeArticle) {
	now := s.now()
	a.ID = newID()
	a.CreatedAt = now
	a.UpdatedAt = now
	stored := *a
	stored.Tags = cloneStrings(a.Tags)
	s.articles[a.ID] = stored
}

func (r *knowledgeRepo) Create(_ context.Context, a *domain.KnowledgeArticle) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertArticleLocked(a)
	return nil
}

func (r *knowledgeRepo) Update(_ context.Context, a *domain.KnowledgeArticle) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.articles[a.ID]
	if !ok || current.OrganizationID != a.OrganizationID {
		return errNotFound
	}
	current.Title = a.Title
	current.Content = a.Content
	current.Category = a.Category
	current.Tags = cloneStrings(a.Tags)
	// strictly increasing so index resync notices back-to-back edits
	updated := s.now()
	if !updated.After(current.UpdatedAt) {
		updated = current.UpdatedAt.Add(time.Nanosecond)
	}
	current.UpdatedAt = updated
	s.articles[a.ID] = current
	*a = current
	return nil
}

func (r *knowledgeRepo) Delete(_ context.Context, orgID, id string) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.articles[id]
	if !ok || current.OrganizationID != orgID {
		return errNotFound
	}
	delete(s.articles, id)
	return nil
}

func (r *knowledgeRepo) GetByID(_ context.Context, orgID, id string) (*domain.KnowledgeArticle, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok || a.OrganizationID != orgID {
		return nil, errNotFound
	}
	return &a, nil
}

func (r *knowledgeRepo) ListByOrg(_ context.Context, orgID string) ([]domain.KnowledgeArticle, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.KnowledgeArticle
	for _, a := range s.articles {
		if a.OrganizationID == orgID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ repository.KnowledgeRepository = (*knowledgeRepo)(nil)
