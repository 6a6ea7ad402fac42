package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

const passwordArticle = "1. Open the sign-in page and click Forgot password.\n2. Enter your work email.\n3. Follow the link and choose a new password."

func TestCreateAutoResolvesFromKnowledgeBase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addArticle(t, "org-1", "How to reset your password", passwordArticle)

	ticket, appended, err := h.tickets.Create(ctx, employee, "How do I reset my password?")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusAutoResolved, ticket.Status)
	assert.Equal(t, domain.AIModeDirect, ticket.AIMode)
	require.NotNil(t, ticket.Confidence)
	assert.GreaterOrEqual(t, *ticket.Confidence, 0.7)
	assert.False(t, ticket.Escalated)
	assert.NotNil(t, ticket.ResolvedAt)

	require.Len(t, appended, 2)
	assert.Equal(t, domain.SenderUser, appended[0].Sender)
	assert.Equal(t, domain.SenderAI, appended[1].Sender)

	_, thread, err := h.tickets.Get(ctx, employee, ticket.ID)
	require.NoError(t, err)
	aiReplies := 0
	for _, m := range thread {
		if m.Sender == domain.SenderAI {
			aiReplies++
		}
	}
	assert.Equal(t, 1, aiReplies)
	assert.Equal(t, int64(1), h.counter.get("org-1"))
}

func TestCreateEscalatesWhenNothingMatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket, appended, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusEscalated, ticket.Status)
	assert.True(t, ticket.Escalated)
	require.NotNil(t, ticket.Category)
	assert.Equal(t, "Billing", *ticket.Category)
	require.NotNil(t, ticket.Summary)
	require.Len(t, appended, 2)
	assert.Equal(t, domain.SenderAI, appended[1].Sender)

	history, err := h.tickets.History(ctx, support, ticket.ID)
	require.NoError(t, err)
	var changes []domain.TicketChangeType
	for _, entry := range history {
		changes = append(changes, entry.ChangeType)
	}
	assert.Contains(t, changes, domain.ChangeTypeStatus)
	assert.Contains(t, changes, domain.ChangeTypeEscalation)
}

func TestCreateRejectsBlankMessage(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.tickets.Create(context.Background(), employee, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestGuidedDialogRunsToResolution(t *testing.T) {
	h := newHarness(t, withMatcher(fixedMatcher{relevance: 0.5}))
	ctx := context.Background()
	h.addArticle(t, "org-1", "How to reset your password", passwordArticle)

	ticket, _, err := h.tickets.Create(ctx, employee, "password trouble")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	assert.Equal(t, domain.AIModeGuided, ticket.AIMode)
	assert.Nil(t, ticket.Confidence)
	require.NotNil(t, ticket.Guided)
	assert.Equal(t, "step_1", ticket.Guided.StepID)

	for _, want := range []string{"step_2", "step_3"} {
		ticket, _, err = h.tickets.PostMessage(ctx, employee, ticket.ID, "done")
		require.NoError(t, err)
		require.NotNil(t, ticket.Guided)
		assert.Equal(t, want, ticket.Guided.StepID)
	}

	ticket, _, err = h.tickets.PostMessage(ctx, employee, ticket.ID, "done")
	require.NoError(t, err)
	require.NotNil(t, ticket.Guided)
	assert.True(t, ticket.Guided.AwaitConfirm)

	ticket, appended, err := h.tickets.PostMessage(ctx, employee, ticket.ID, "yes")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	assert.Nil(t, ticket.Guided)
	assert.Nil(t, ticket.Confidence)
	assert.NotNil(t, ticket.ResolvedAt)
	require.Len(t, appended, 2)

	_, thread, err := h.tickets.Get(ctx, employee, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 10)
	for i, m := range thread {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}

func TestNegativeReplyEscalatesGuidedTicket(t *testing.T) {
	h := newHarness(t, withMatcher(fixedMatcher{relevance: 0.5}))
	ctx := context.Background()
	h.addArticle(t, "org-1", "How to reset your password", passwordArticle)

	ticket, _, err := h.tickets.Create(ctx, employee, "password trouble")
	require.NoError(t, err)

	ticket, _, err = h.tickets.PostMessage(ctx, employee, ticket.ID, "no, it didn't work")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, ticket.Status)
	assert.True(t, ticket.Escalated)
	assert.Equal(t, domain.AIModeGuided, ticket.AIMode)
	assert.Nil(t, ticket.Confidence)
}

func TestStaffReplyDoesNotWakeEngine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket, _, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)

	_, appended, err := h.tickets.PostMessage(ctx, support, ticket.ID, "Refund issued, please check tomorrow")
	require.NoError(t, err)
	require.Len(t, appended, 1)
	assert.Equal(t, domain.SenderAdmin, appended[0].Sender)

	_, appended, err = h.tickets.PostMessage(ctx, employee, ticket.ID, "thanks")
	require.NoError(t, err)
	require.Len(t, appended, 1)
	assert.Equal(t, domain.SenderUser, appended[0].Sender)
}

func TestPostMessageOnSomeoneElsesTicketIsForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket, _, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)

	_, _, err = h.tickets.PostMessage(ctx, coworker, ticket.ID, "me too")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, _, err = h.tickets.Get(ctx, coworker, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestOtherOrganizationCannotSeeTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket, _, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)

	_, _, err = h.tickets.Get(ctx, outsider, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = h.tickets.UpdateStatus(ctx, outsider, ticket.ID, domain.TicketStatusClosed)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	list, err := h.tickets.List(ctx, outsider, TicketListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket, _, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusEscalated, ticket.Status)

	_, err = h.tickets.UpdateStatus(ctx, employee, ticket.ID, domain.TicketStatusResolved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.tickets.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusEscalated)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = h.tickets.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatus("archived"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	updated, err := h.tickets.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.True(t, updated.Escalated, "escalated flag survives leaving the escalated status")

	_, err = h.tickets.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)

	_, err = h.tickets.UpdateStatus(ctx, superAdmin, ticket.ID, domain.TicketStatusInProgress)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	current, _, err := h.tickets.Get(ctx, support, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, current.Status)
}

func TestListFiltersStatusAndEscalationIndependently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	escalated, _, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)
	_, err = h.tickets.UpdateStatus(ctx, support, escalated.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	_, _, err = h.tickets.Create(ctx, coworker, "The invoice for April is missing")
	require.NoError(t, err)

	yes := true
	inProgressEscalated, err := h.tickets.List(ctx, support, TicketListFilter{
		Statuses:  []domain.TicketStatus{domain.TicketStatusInProgress},
		Escalated: &yes,
	})
	require.NoError(t, err)
	require.Len(t, inProgressEscalated, 1)
	assert.Equal(t, escalated.ID, inProgressEscalated[0].ID)

	own, err := h.tickets.List(ctx, coworker, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "emp-2", own[0].CreatedBy)

	_, err = h.tickets.List(ctx, support, TicketListFilter{Statuses: []domain.TicketStatus{"bogus"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestAssignChecksAssigneeOrganization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket, _, err := h.tickets.Create(ctx, employee, "The invoice for March shows the wrong amount")
	require.NoError(t, err)

	foreign := outsider.UserID
	_, err = h.assignments.Assign(ctx, support, ticket.ID, &foreign)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCrossTenant))

	ghost := "nobody"
	_, err = h.assignments.Assign(ctx, support, ticket.ID, &ghost)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	requester := employee.UserID
	_, err = h.assignments.Assign(ctx, support, ticket.ID, &requester)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = h.assignments.Assign(ctx, employee, ticket.ID, &requester)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	current, _, err := h.tickets.Get(ctx, support, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, current.AssignedTo)

	assignee := support.UserID
	updated, err := h.assignments.Assign(ctx, superAdmin, ticket.ID, &assignee)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "sup-1", *updated.AssignedTo)

	updated, err = h.assignments.Assign(ctx, superAdmin, ticket.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)

	history, err := h.tickets.History(ctx, support, ticket.ID)
	require.NoError(t, err)
	assignments := 0
	for _, entry := range history {
		if entry.ChangeType == domain.ChangeTypeAssignee {
			assignments++
		}
	}
	assert.Equal(t, 2, assignments)
}
