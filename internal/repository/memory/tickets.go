package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
)

type ticketRepo Store

func (r *ticketRepo) store() *Store { return (*Store)(r) }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ticket.ID = newID()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.Version = 1
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tickets[ticket.ID]
	if !ok || current.OrganizationID != ticket.OrganizationID {
		return errNotFound
	}
	if current.Version != ticket.Version {
		return repository.ErrStaleTicket
	}
	ticket.Version++
	ticket.UpdatedAt = s.now()
	ticket.CreatedAt = current.CreatedAt
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, orgID, id string) (*domain.Ticket, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok || t.OrganizationID != orgID {
		return nil, errNotFound
	}
	out := cloneTicket(t)
	return &out, nil
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		if filter.Escalated != nil && t.Escalated != *filter.Escalated {
			continue
		}
		if filter.UpdatedSince != nil && t.UpdatedAt.Before(*filter.UpdatedSince) {
			continue
		}
		out = append(out, cloneTicket(t))
	}
	sortByUpdatedDesc(out)
	return page(out, filter.Limit, filter.Offset, 20), nil
}

func (r *ticketRepo) ListForAnalysis(_ context.Context, orgID string, since time.Time) ([]domain.Ticket, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.OrganizationID != orgID || t.UpdatedAt.Before(since) {
			continue
		}
		if t.Escalated || t.Status.Terminal() {
			out = append(out, cloneTicket(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ticketRepo) CountHandled(_ context.Context, orgID string) (int, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tickets {
		if t.OrganizationID == orgID && t.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

// SetUpdatedAt backdates a ticket; used to build analysis fixtures.
func (s *Store) SetUpdatedAt(ticketID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[ticketID]; ok {
		t.UpdatedAt = at
		s.tickets[ticketID] = t
	}
}
