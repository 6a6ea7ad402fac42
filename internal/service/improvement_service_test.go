package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/clustering"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

func TestRunAnalysisDraftsOneSuggestionPerRecurringIssue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ids := h.seedResolvedOutlookTickets(t, 12)
	for i := 0; i < 2; i++ {
		_, _, err := h.tickets.Create(ctx, coworker, "VPN drops every hour on hotel wifi")
		require.NoError(t, err)
	}
	noise, _, err := h.tickets.Create(ctx, coworker, "???")
	require.NoError(t, err)

	result, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)

	assert.Equal(t, 14, result.TicketsAnalyzed)
	assert.Equal(t, 1, result.ClustersFound)
	assert.Equal(t, []string{noise.ID}, result.SkippedTickets)
	require.Len(t, result.NewDrafts, 1)
	draft := result.NewDrafts[0]
	assert.Equal(t, domain.SuggestionStatusDraft, draft.Status)
	assert.Equal(t, 12, draft.TicketCount)
	assert.ElementsMatch(t, ids, draft.RelatedTickets)
	assert.Equal(t, 100, draft.ConfidenceScore)
	assert.NotEmpty(t, draft.Title)
	assert.Contains(t, draft.Content, "Credential Manager")
	assert.Len(t, draft.TopicSignature, 32)
	assert.Equal(t, int64(0), h.counter.get("org-1"))
	assert.NotEmpty(t, h.dueOrgs)
}

func TestRunAnalysisIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedResolvedOutlookTickets(t, 12)

	first, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	require.Len(t, first.NewDrafts, 1)

	second, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	assert.Empty(t, second.NewDrafts)
	require.Len(t, second.ExistingDrafts, 1)
	assert.Equal(t, first.NewDrafts[0].ID, second.ExistingDrafts[0].SuggestionID)

	all, err := h.review.List(ctx, superAdmin, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunAnalysisRemembersRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedResolvedOutlookTickets(t, 12)

	first, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	require.Len(t, first.NewDrafts, 1)
	_, err = h.review.Reject(ctx, superAdmin, first.NewDrafts[0].ID, nil)
	require.NoError(t, err)

	second, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	assert.Empty(t, second.NewDrafts)
	require.Len(t, second.PreviouslyRejected, 1)
	assert.Equal(t, first.NewDrafts[0].ID, second.PreviouslyRejected[0].SuggestionID)

	summary, err := h.analytics.Summary(ctx, superAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RecurringIssuesThisMonth)
	assert.Equal(t, 1, summary.RejectedSuggestions)
	assert.Equal(t, 0, summary.PendingSuggestions)
	assert.Equal(t, []string{first.NewDrafts[0].ID}, summary.LastRunRejected)
	require.NotNil(t, summary.LastRunAt)
}

func TestRunAnalysisReportsApprovedTopics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedResolvedOutlookTickets(t, 12)

	first, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	require.Len(t, first.NewDrafts, 1)
	_, _, err = h.review.Approve(ctx, superAdmin, first.NewDrafts[0].ID)
	require.NoError(t, err)

	second, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	assert.Empty(t, second.NewDrafts)
	assert.Len(t, second.AlreadyApproved, 1)
}

func TestRunAnalysisSkipsTopicsTheKnowledgeBaseCovers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedResolvedOutlookTickets(t, 12)
	article, err := h.knowledge.Create(ctx, support, ArticleInput{Title: outlookIssue, Content: outlookFix})
	require.NoError(t, err)

	result, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	assert.Empty(t, result.NewDrafts)
	require.Len(t, result.AlreadyCovered, 1)
	assert.Equal(t, article.ID, result.AlreadyCovered[0].ArticleID)
	assert.GreaterOrEqual(t, result.AlreadyCovered[0].Similarity, 0.88)
}

func TestRunAnalysisIgnoresSmallGroups(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedResolvedOutlookTickets(t, 4)

	result, err := h.improvement.RunAnalysis(ctx, superAdmin, 0)
	require.NoError(t, err)
	assert.Zero(t, result.ClustersFound)
	assert.Empty(t, result.NewDrafts)
}

func TestRunAnalysisIsExclusivePerOrganization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	lease, ok, err := h.locker.TryAcquire(ctx, lock.AnalysisKey("org-1"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.improvement.RunAnalysis(ctx, superAdmin, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAnalysisInProgress))

	_, err = h.improvement.RunAnalysis(ctx, outsider, 0)
	assert.NoError(t, err, "another organization is not blocked")

	require.NoError(t, lease.Release(ctx))
	_, err = h.improvement.RunAnalysis(ctx, superAdmin, 0)
	assert.NoError(t, err)
}

func TestRunAnalysisRequiresSuperAdmin(t *testing.T) {
	h := newHarness(t)

	_, err := h.improvement.RunAnalysis(context.Background(), support, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestDueTracksIntervalAndHandledTickets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	due, reason, err := h.improvement.Due(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, due)
	assert.Equal(t, "never_run", reason)

	_, err = h.improvement.RunScheduled(ctx, "org-1")
	require.NoError(t, err)
	due, _, err = h.improvement.Due(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, due)

	h.seedResolvedOutlookTickets(t, 3)
	due, reason, err = h.improvement.Due(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, due)
	assert.Equal(t, "resolved_threshold", reason)
}

func TestMatchSuggestionPrefersRejected(t *testing.T) {
	c := clustering.Cluster{ID: "c-new", Signature: "sig-1", Topic: "outlook password prompt"}
	existing := []domain.Suggestion{
		{ID: "draft", Status: domain.SuggestionStatusDraft, TopicSignature: "sig-1"},
		{ID: "rejected", Status: domain.SuggestionStatusRejected, NormalizedTopic: "outlook password prompt"},
		{ID: "members", Status: domain.SuggestionStatusApproved, ClusterID: "c-new"},
	}

	got, ok := matchSuggestion(existing, c, 0.8)
	require.True(t, ok)
	assert.Equal(t, "rejected", got.ID)

	got, ok = matchSuggestion(existing[2:], c, 0.8)
	require.True(t, ok)
	assert.Equal(t, "members", got.ID)

	_, ok = matchSuggestion(nil, c, 0.8)
	assert.False(t, ok)
}

func TestConfidenceScore(t *testing.T) {
	assert.Equal(t, 100, ConfidenceScore(1, 10, 5))
	assert.Equal(t, 90, ConfidenceScore(1, 3, 5))
	assert.Equal(t, 0, ConfidenceScore(-1, 0, 5))
	assert.Equal(t, 100, ConfidenceScore(2, 10, 5))
}
