package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
)

func TestAppendAssignsSequentialSeq(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	ticket := &domain.Ticket{OrganizationID: "org-1", CreatedBy: "u-1", Message: "hi", Status: domain.TicketStatusOpen}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := &domain.TicketMessage{TicketID: ticket.ID, Sender: domain.SenderUser, Body: fmt.Sprintf("m%d", i)}
			assert.NoError(t, repos.Messages.Append(ctx, msg))
		}(i)
	}
	wg.Wait()

	thread, err := repos.Messages.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 20)
	for i, m := range thread {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}

func TestTicketsAreOrganizationScoped(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	ticket := &domain.Ticket{OrganizationID: "org-1", CreatedBy: "u-1", Message: "hi", Status: domain.TicketStatusOpen}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	_, err := repos.Tickets.GetByID(ctx, "org-2", ticket.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	escalated := true
	list, err := repos.Tickets.List(ctx, repository.TicketFilter{OrganizationID: "org-1", Escalated: &escalated})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCountUnreadJoinsTickets(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	admin := "admin-1"
	mine := &domain.Ticket{OrganizationID: "org-1", CreatedBy: "u-1", Status: domain.TicketStatusOpen, AssignedTo: &admin}
	other := &domain.Ticket{OrganizationID: "org-1", CreatedBy: "u-2", Status: domain.TicketStatusOpen}
	require.NoError(t, repos.Tickets.Create(ctx, mine))
	require.NoError(t, repos.Tickets.Create(ctx, other))
	for _, m := range []domain.TicketMessage{
		{TicketID: mine.ID, Sender: domain.SenderUser},
		{TicketID: mine.ID, Sender: domain.SenderAI},
		{TicketID: mine.ID, Sender: domain.SenderAdmin},
		{TicketID: other.ID, Sender: domain.SenderUser},
	} {
		require.NoError(t, repos.Messages.Append(ctx, &m))
	}

	user := "u-1"
	n, err := repos.Messages.CountUnread(ctx, repository.UnreadQuery{
		OrganizationID: "org-1", CreatedBy: &user,
		Senders: []domain.MessageSender{domain.SenderAI, domain.SenderAdmin},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repos.Messages.CountUnread(ctx, repository.UnreadQuery{
		OrganizationID: "org-1", AssignedTo: &admin, Senders: []domain.MessageSender{domain.SenderUser},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	flipped, err := repos.Messages.MarkRead(ctx, mine.ID, []domain.MessageSender{domain.SenderAI, domain.SenderAdmin})
	require.NoError(t, err)
	assert.Equal(t, int64(2), flipped)
}

func TestSuggestionReviewIsSingleFire(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	sg := &domain.Suggestion{OrganizationID: "org-1", Title: "Reset MFA", Status: domain.SuggestionStatusDraft}
	require.NoError(t, repos.Suggestions.Create(ctx, sg))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			copySg := *sg
			article := &domain.KnowledgeArticle{OrganizationID: "org-1", Title: sg.Title}
			if repos.Suggestions.Approve(ctx, &copySg, article, "admin", time.Now()) == nil {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			copySg := *sg
			if repos.Suggestions.Reject(ctx, &copySg, "admin", nil, time.Now()) == nil {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, approved+rejected)
	articles, err := repos.Knowledge.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, articles, approved)

	err = repos.Suggestions.UpdateDraft(ctx, sg)
	assert.ErrorIs(t, err, repository.ErrNotDraft)
}

func TestTicketUpdateRejectsStaleVersion(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	ticket := &domain.Ticket{OrganizationID: "org-1", CreatedBy: "u-1", Message: "hi", Status: domain.TicketStatusOpen}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))
	require.Equal(t, int64(1), ticket.Version)

	first, err := repos.Tickets.GetByID(ctx, "org-1", ticket.ID)
	require.NoError(t, err)
	second, err := repos.Tickets.GetByID(ctx, "org-1", ticket.ID)
	require.NoError(t, err)

	first.Status = domain.TicketStatusClosed
	require.NoError(t, repos.Tickets.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = domain.TicketStatusEscalated
	assert.ErrorIs(t, repos.Tickets.Update(ctx, second), repository.ErrStaleTicket)

	stored, err := repos.Tickets.GetByID(ctx, "org-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
}

func TestHistoryIsOrganizationScoped(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	ticket := &domain.Ticket{OrganizationID: "org-1", CreatedBy: "u-1", Message: "hi", Status: domain.TicketStatusOpen}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	entry := &domain.TicketHistory{
		TicketID:       ticket.ID,
		OrganizationID: "org-1",
		ChangedByType:  domain.SenderAI,
		ChangeType:     domain.ChangeTypeStatus,
		OldValue:       map[string]any{"status": "open"},
		NewValue:       map[string]any{"status": "escalated"},
	}
	require.NoError(t, repos.History.Append(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	foreign := &domain.TicketHistory{TicketID: ticket.ID, OrganizationID: "org-2", ChangeType: domain.ChangeTypeStatus}
	assert.ErrorIs(t, repos.History.Append(ctx, foreign), pgx.ErrNoRows)
	assert.Error(t, repos.History.Append(ctx, &domain.TicketHistory{TicketID: ticket.ID, OrganizationID: "org-1", ChangeType: "renamed"}))

	trail, err := repos.History.ListByTicket(ctx, "org-1", ticket.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.ChangeTypeStatus, trail[0].ChangeType)

	other, err := repos.History.ListByTicket(ctx, "org-2", ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}
