package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	"github.com/vicmordi/AIHelpdesk/internal/matching"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// gatedMatcher blocks every Match until proceed is closed.
type gatedMatcher struct {
	entered chan struct{}
	proceed chan struct{}
}

func newGatedMatcher() *gatedMatcher {
	return &gatedMatcher{entered: make(chan struct{}, 1), proceed: make(chan struct{})}
}

func (g *gatedMatcher) Match(ctx context.Context, _, _ string, _ []domain.KnowledgeArticle, _ int) (*matching.Result, error) {
	g.entered <- struct{}{}
	select {
	case <-g.proceed:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &matching.Result{Intent: matching.IntentUnclear}, nil
}

// leakyLocker grants every request at once, the way an expired lease lets a
// second writer in.
type leakyLocker struct{}

func (leakyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, error) {
	lease, _, err := lock.NewLocalLocker().TryAcquire(ctx, key, ttl)
	return lease, err
}

func (leakyLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, bool, error) {
	return lock.NewLocalLocker().TryAcquire(ctx, key, ttl)
}

type createOutcome struct {
	ticket   *domain.Ticket
	appended []domain.TicketMessage
	err      error
}

func (h *harness) createInBackground(ctx context.Context, message string) <-chan createOutcome {
	done := make(chan createOutcome, 1)
	go func() {
		ticket, appended, err := h.tickets.Create(ctx, employee, message)
		done <- createOutcome{ticket: ticket, appended: appended, err: err}
	}()
	return done
}

func (h *harness) onlyTicketID(t *testing.T) string {
	t.Helper()
	listed, err := h.tickets.List(context.Background(), support, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	return listed[0].ID
}

func TestConcurrentPostsKeepArrivalOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addArticle(t, "org-1", "How to reset your password", passwordArticle)

	ticket, _, err := h.tickets.Create(ctx, employee, "How do I reset my password?")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusAutoResolved, ticket.Status)

	const rounds = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := h.tickets.PostMessage(ctx, employee, ticket.ID, "hmm, let me check")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, _, err := h.tickets.PostMessage(ctx, support, ticket.ID, fmt.Sprintf("Looking into it (%d)", i))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, thread, err := h.tickets.Get(ctx, employee, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAutoResolved, stored.Status)
	require.Len(t, thread, 2+3*rounds)
	for i, m := range thread {
		assert.Equal(t, int64(i+1), m.Seq)
	}
	// every requester reply is answered before anyone else gets the ticket
	for i := 2; i < len(thread); i++ {
		if thread[i].Sender == domain.SenderUser {
			require.Less(t, i+1, len(thread))
			assert.Equal(t, domain.SenderAI, thread[i+1].Sender, "message %d", i+1)
		}
	}
}

func TestNegativeReplyReopensAutoResolvedTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addArticle(t, "org-1", "How to reset your password", passwordArticle)

	ticket, _, err := h.tickets.Create(ctx, employee, "How do I reset my password?")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusAutoResolved, ticket.Status)

	ticket, appended, err := h.tickets.PostMessage(ctx, employee, ticket.ID, "thanks but it still fails")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, ticket.Status)
	assert.True(t, ticket.Escalated)
	require.Len(t, appended, 2)
	assert.Equal(t, domain.SenderAI, appended[1].Sender)
}

func TestTicketLeaseOutlivesSlowResolution(t *testing.T) {
	gate := newGatedMatcher()
	h := newHarness(t, withMatcher(gate), withTicketLockTTL(60*time.Millisecond))
	ctx := context.Background()

	done := h.createInBackground(ctx, "The projector in room 4 shows no signal")
	<-gate.entered
	id := h.onlyTicketID(t)

	staffDone := make(chan error, 1)
	go func() {
		_, err := h.tickets.UpdateStatus(ctx, support, id, domain.TicketStatusClosed)
		staffDone <- err
	}()
	select {
	case err := <-staffDone:
		t.Fatalf("status update ran while the engine held the ticket: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	close(gate.proceed)
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, domain.TicketStatusEscalated, out.ticket.Status)
	require.Len(t, out.appended, 2)

	require.NoError(t, <-staffDone)
	stored, _, err := h.tickets.Get(ctx, support, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.True(t, stored.Escalated)
}

func TestEngineDecisionYieldsToConcurrentStaffUpdate(t *testing.T) {
	gate := newGatedMatcher()
	h := newHarness(t, withMatcher(gate), withTicketLocker(leakyLocker{}))
	ctx := context.Background()

	done := h.createInBackground(ctx, "The projector in room 4 shows no signal")
	<-gate.entered
	id := h.onlyTicketID(t)

	closed, err := h.tickets.UpdateStatus(ctx, support, id, domain.TicketStatusClosed)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, closed.Status)

	close(gate.proceed)
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, domain.TicketStatusClosed, out.ticket.Status)
	require.Len(t, out.appended, 1, "the stale decision adds no ai message")

	stored, thread, err := h.tickets.Get(ctx, support, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.False(t, stored.Escalated)
	assert.Len(t, thread, 1)
}

func TestStaleStatusUpdateIsAConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket, _, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)

	stale, err := h.repos.Tickets.GetByID(ctx, "org-1", ticket.ID)
	require.NoError(t, err)
	_, err = h.tickets.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)

	stale.Status = domain.TicketStatusClosed
	assert.ErrorIs(t, h.repos.Tickets.Update(ctx, stale), repository.ErrStaleTicket)
	assert.True(t, apperrors.HasCode(mapTicketWrite(repository.ErrStaleTicket, ticket.ID), apperrors.CodeConflict))
}
