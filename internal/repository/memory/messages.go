package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
)

type messageRepo Store

func (r *messageRepo) store() *Store { return (*Store)(r) }

func (r *messageRepo) Append(_ context.Context, msg *domain.TicketMessage) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[msg.TicketID]; !ok {
		return errNotFound
	}
	thread := s.messages[msg.TicketID]
	msg.ID = newID()
	msg.Seq = int64(len(thread)) + 1
	msg.CreatedAt = s.now()
	stored := *msg
	stored.Options = append([]domain.DialogOption(nil), msg.Options...)
	s.messages[msg.TicketID] = append(thread, stored)
	return nil
}

func (r *messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TicketMessage(nil), s.messages[ticketID]...), nil
}

func (r *messageRepo) ListByTickets(_ context.Context, ticketIDs []string) (map[string][]domain.TicketMessage, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.TicketMessage, len(ticketIDs))
	for _, id := range ticketIDs {
		if thread, ok := s.messages[id]; ok {
			out[id] = append([]domain.TicketMessage(nil), thread...)
		}
	}
	return out, nil
}

func (r *messageRepo) MarkRead(_ context.Context, ticketID string, senders []domain.MessageSender) (int64, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	thread := s.messages[ticketID]
	for i := range thread {
		if !thread[i].IsRead && slices.Contains(senders, thread[i].Sender) {
			thread[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) CountUnread(_ context.Context, q repository.UnreadQuery) (int, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for ticketID, thread := range s.messages {
		t := s.tickets[ticketID]
		if t.OrganizationID != q.OrganizationID {
			continue
		}
		if q.CreatedBy != nil && t.CreatedBy != *q.CreatedBy {
			continue
		}
		if q.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *q.AssignedTo) {
			continue
		}
		for _, m := range thread {
			if !m.IsRead && slices.Contains(q.Senders, m.Sender) {
				n++
			}
		}
	}
	return n, nil
}

type historyRepo Store

func (r *historyRepo) store() *Store { return (*Store)(r) }

func (r *historyRepo) Append(_ context.Context, h *domain.TicketHistory) error {
	if !h.ChangeType.Valid() {
		return fmt.Errorf("unknown change type %q", h.ChangeType)
	}
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[h.TicketID]; !ok || t.OrganizationID != h.OrganizationID {
		return errNotFound
	}
	h.ID = newID()
	h.CreatedAt = s.now()
	s.history[h.TicketID] = append(s.history[h.TicketID], *h)
	return nil
}

func (r *historyRepo) ListByTicket(_ context.Context, orgID, ticketID string) ([]domain.TicketHistory, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TicketHistory
	for _, h := range s.history[ticketID] {
		if h.OrganizationID == orgID {
			out = append(out, h)
		}
	}
	return out, nil
}
