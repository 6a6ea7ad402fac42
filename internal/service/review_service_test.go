package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

func (h *harness) addDraft(t *testing.T, orgID string) domain.Suggestion {
	t.Helper()
	sg := &domain.Suggestion{
		OrganizationID:  orgID,
		ClusterID:       "cluster-1",
		TopicSignature:  "sig-1",
		NormalizedTopic: "outlook password prompt",
		Title:           "Outlook keeps prompting for a password",
		Category:        "Email",
		Content:         "1. Open Credential Manager\n2. Remove the Outlook entries\n3. Restart Outlook",
		Tags:            []string{"outlook", "password"},
		Status:          domain.SuggestionStatusDraft,
		ConfidenceScore: 91,
		TicketCount:     7,
		RelatedTickets:  []string{"t-1", "t-2"},
	}
	require.NoError(t, h.repos.Suggestions.Create(context.Background(), sg))
	return *sg
}

func TestApprovePublishesArticle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft := h.addDraft(t, "org-1")

	article, sg, err := h.review.Approve(ctx, superAdmin, draft.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ArticleSourceKnowledgeImprovement, article.Source)
	require.NotNil(t, article.SourceSuggestionID)
	assert.Equal(t, draft.ID, *article.SourceSuggestionID)
	assert.Equal(t, draft.Title, article.Title)
	assert.Equal(t, "Rita", article.Author)
	require.NotNil(t, article.Category)
	assert.Equal(t, "Email", *article.Category)

	assert.Equal(t, domain.SuggestionStatusApproved, sg.Status)
	require.NotNil(t, sg.LinkedKBID)
	assert.Equal(t, article.ID, *sg.LinkedKBID)
	require.NotNil(t, sg.ReviewedBy)
	assert.Equal(t, superAdmin.UserID, *sg.ReviewedBy)

	visible, err := h.knowledge.Get(ctx, employee, article.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Content, visible.Content)
}

func TestReviewedSuggestionsAreFinal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft := h.addDraft(t, "org-1")

	_, _, err := h.review.Approve(ctx, superAdmin, draft.ID)
	require.NoError(t, err)

	_, _, err = h.review.Approve(ctx, superAdmin, draft.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	_, err = h.review.Reject(ctx, superAdmin, draft.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	title := "New title"
	_, err = h.review.EditDraft(ctx, superAdmin, draft.ID, SuggestionPatch{Title: &title})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	articles, err := h.knowledge.List(ctx, superAdmin)
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestConcurrentReviewHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft := h.addDraft(t, "org-1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, errs[0] = h.review.Approve(ctx, superAdmin, draft.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = h.review.Reject(ctx, superAdmin, draft.ID, nil)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), err)
	}
	assert.Equal(t, 1, succeeded)

	got, err := h.review.Get(ctx, superAdmin, draft.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDraft())
}

func TestRejectCleansReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	long := "  " + strings.Repeat("a", 1500) + "  "
	sg, err := h.review.Reject(ctx, superAdmin, h.addDraft(t, "org-1").ID, &long)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionStatusRejected, sg.Status)
	require.NotNil(t, sg.DecisionReason)
	assert.Len(t, *sg.DecisionReason, MaxRejectReasonLen)

	blank := "   "
	sg, err = h.review.Reject(ctx, superAdmin, h.addDraft(t, "org-1").ID, &blank)
	require.NoError(t, err)
	assert.Nil(t, sg.DecisionReason)

	articles, err := h.knowledge.List(ctx, superAdmin)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestEditDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft := h.addDraft(t, "org-1")

	title := "  Fix Outlook password prompts  "
	category := "Account"
	sg, err := h.review.EditDraft(ctx, superAdmin, draft.ID, SuggestionPatch{Title: &title, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "Fix Outlook password prompts", sg.Title)
	assert.Equal(t, "Account", sg.Category)
	assert.Equal(t, draft.Content, sg.Content)

	stored, err := h.review.Get(ctx, superAdmin, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fix Outlook password prompts", stored.Title)
	assert.Equal(t, domain.SuggestionStatusDraft, stored.Status)

	tooLong := strings.Repeat("t", 201)
	_, err = h.review.EditDraft(ctx, superAdmin, draft.ID, SuggestionPatch{Title: &tooLong})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	empty := " "
	_, err = h.review.EditDraft(ctx, superAdmin, draft.ID, SuggestionPatch{Content: &empty})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestReviewIsScopedToSuperAdminsOfTheOrganization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	draft := h.addDraft(t, "org-1")

	_, _, err := h.review.Approve(ctx, support, draft.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.review.Get(ctx, outsider, draft.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	bogus := domain.SuggestionStatus("pending")
	_, err = h.review.List(ctx, superAdmin, &bogus, 0, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	drafts := domain.SuggestionStatusDraft
	items, err := h.review.List(ctx, superAdmin, &drafts, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, draft.ID, items[0].ID)
}
