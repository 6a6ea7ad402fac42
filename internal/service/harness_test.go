package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vicmordi/AIHelpdesk/internal/clustering"
	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/embedding"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/llm"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	"github.com/vicmordi/AIHelpdesk/internal/matching"
	"github.com/vicmordi/AIHelpdesk/internal/repository/memory"
	"github.com/vicmordi/AIHelpdesk/internal/resolution"
)

var (
	employee   = domain.Actor{UserID: "emp-1", OrganizationID: "org-1", Name: "Ada", Role: domain.RoleEmployee}
	coworker   = domain.Actor{UserID: "emp-2", OrganizationID: "org-1", Name: "Grace", Role: domain.RoleEmployee}
	support    = domain.Actor{UserID: "sup-1", OrganizationID: "org-1", Name: "Sam", Role: domain.RoleSupportAdmin}
	superAdmin = domain.Actor{UserID: "root-1", OrganizationID: "org-1", Name: "Rita", Role: domain.RoleSuperAdmin}
	outsider   = domain.Actor{UserID: "sup-2", OrganizationID: "org-2", Name: "Olga", Role: domain.RoleSuperAdmin}
)

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *memCounter) IncrResolved(_ context.Context, orgID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[orgID]++
	return c.counts[orgID], nil
}

func (c *memCounter) ResetResolved(_ context.Context, orgID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, orgID)
	return nil
}

func (c *memCounter) get(orgID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[orgID]
}

// fixedMatcher ranks the first in-org article at a fixed relevance.
type fixedMatcher struct {
	relevance float64
}

func (f fixedMatcher) Match(_ context.Context, orgID, _ string, articles []domain.KnowledgeArticle, _ int) (*matching.Result, error) {
	res := &matching.Result{Intent: matching.IntentUnclear}
	for _, a := range articles {
		if a.OrganizationID == orgID {
			res.Candidates = append(res.Candidates, matching.Candidate{Article: a, Relevance: f.relevance})
			break
		}
	}
	return res, nil
}

type harness struct {
	store       *memory.Store
	repos       memory.Repositories
	locker      *lock.LocalLocker
	counter     *memCounter
	dispatcher  events.Dispatcher
	tickets     *TicketService
	assignments *AssignmentService
	knowledge   *KnowledgeService
	improvement *ImprovementService
	review      *ReviewService
	analytics   *AnalyticsService
	notify      *NotificationService
	dueOrgs     []string
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	matcher      resolution.Matcher
	analysis     config.AnalysisConfig
	ticketLocker lock.Locker
	ticketTTL    time.Duration
}

func withMatcher(m resolution.Matcher) harnessOption {
	return func(c *harnessConfig) { c.matcher = m }
}

// withTicketLocker replaces the locker used for ticket writes.
func withTicketLocker(l lock.Locker) harnessOption {
	return func(c *harnessConfig) { c.ticketLocker = l }
}

func withTicketLockTTL(ttl time.Duration) harnessOption {
	return func(c *harnessConfig) { c.ticketTTL = ttl }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	repos := store.Repositories()
	embedder := embedding.NewHashingEmbedder(512)
	matcher := matching.NewMatcher(matching.NewIndex(embedder, logger))

	hc := harnessConfig{
		matcher: matcher,
		analysis: config.AnalysisConfig{
			SimilarityThreshold: 0.85,
			MinClusterSize:      5,
			LookbackDays:        30,
			KBCoverageThreshold: 0.88,
			TopicTolerance:      0.8,
			IntervalHours:       24,
			ResolvedThreshold:   3,
			Concurrency:         4,
		},
	}
	for _, opt := range opts {
		opt(&hc)
	}

	engine := resolution.NewEngine(resolution.Dependencies{
		Matcher:   hc.matcher,
		Generator: llm.NewTemplateGenerator(),
		Config: config.EngineConfig{
			MatchThreshold:       0.6,
			GuidedFloor:          0.35,
			AutoResolveThreshold: 0.7,
			CloseCallGap:         0.1,
			TopK:                 3,
			UpstreamTimeout:      2 * time.Second,
		},
		Logger: logger,
	})

	h := &harness{
		store:      store,
		repos:      repos,
		locker:     lock.NewLocalLocker(),
		counter:    &memCounter{},
		dispatcher: events.NewInMemoryDispatcher(logger),
	}
	var ticketLocker lock.Locker = h.locker
	if hc.ticketLocker != nil {
		ticketLocker = hc.ticketLocker
	}
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:    repos.Tickets,
		MessageRepo:   repos.Messages,
		HistoryRepo:   repos.History,
		KnowledgeRepo: repos.Knowledge,
		SettingsRepo:  repos.Settings,
		Engine:        engine,
		Locker:        ticketLocker,
		LockTTL:       hc.ticketTTL,
		Dispatcher:    h.dispatcher,
		Logger:        logger,
	})
	h.assignments = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  repos.Tickets,
		MemberRepo:  repos.Members,
		HistoryRepo: repos.History,
		Locker:      ticketLocker,
		LockTTL:     hc.ticketTTL,
		Dispatcher:  h.dispatcher,
		Logger:      logger,
	})
	h.knowledge = NewKnowledgeService(repos.Knowledge, logger)
	h.improvement = NewImprovementService(ImprovementDependencies{
		TicketRepo:      repos.Tickets,
		MessageRepo:     repos.Messages,
		KnowledgeRepo:   repos.Knowledge,
		SuggestionRepo:  repos.Suggestions,
		StateRepo:       repos.Analysis,
		SettingsRepo:    repos.Settings,
		Clusterer:       clustering.NewClusterer(embedder, logger),
		Coverage:        matcher,
		Locker:          h.locker,
		Counter:         h.counter,
		Dispatcher:      h.dispatcher,
		Logger:          logger,
		Config:          hc.analysis,
		UpstreamTimeout: 2 * time.Second,
	})
	h.review = NewReviewService(ReviewDependencies{
		SuggestionRepo: repos.Suggestions,
		Dispatcher:     h.dispatcher,
		Logger:         logger,
	})
	h.analytics = NewAnalyticsService(repos.Tickets, repos.Suggestions, repos.Analysis)
	h.notify = NewNotificationService(NotificationDependencies{
		MessageRepo:       repos.Messages,
		Counter:           h.counter,
		ResolvedThreshold: hc.analysis.ResolvedThreshold,
		OnAnalysisDue:     func(orgID string) { h.dueOrgs = append(h.dueOrgs, orgID) },
		Logger:            logger,
	})
	for _, eventType := range NotificationEventTypes {
		h.dispatcher.Subscribe(eventType, h.notify.HandleEvent)
	}

	ctx := context.Background()
	for _, a := range []domain.Actor{employee, coworker, support, superAdmin, outsider} {
		require.NoError(t, repos.Members.Upsert(ctx, &domain.Member{
			UserID:         a.UserID,
			OrganizationID: a.OrganizationID,
			Name:           a.Name,
			Role:           a.Role,
			Active:         true,
		}))
	}
	return h
}

func (h *harness) addArticle(t *testing.T, orgID, title, content string) domain.KnowledgeArticle {
	t.Helper()
	a := &domain.KnowledgeArticle{
		OrganizationID: orgID,
		Title:          title,
		Content:        content,
		Author:         "seed",
		Source:         domain.ArticleSourceManual,
	}
	require.NoError(t, h.repos.Knowledge.Create(context.Background(), a))
	return *a
}

const (
	outlookIssue = "Outlook keeps asking for my password after the update"
	outlookFix   = "Cleared the cached credentials in Credential Manager and restarted Outlook"
)

// seedResolvedOutlookTickets files n identical tickets that escalate, get a
// staff answer and are resolved.
func (h *harness) seedResolvedOutlookTickets(t *testing.T, n int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ticket, _, err := h.tickets.Create(ctx, employee, outlookIssue)
		require.NoError(t, err)
		require.Equal(t, domain.TicketStatusEscalated, ticket.Status)
		_, _, err = h.tickets.PostMessage(ctx, support, ticket.ID, outlookFix)
		require.NoError(t, err)
		_, err = h.tickets.UpdateStatus(ctx, support, ticket.ID, domain.TicketStatusResolved)
		require.NoError(t, err)
		ids = append(ids, ticket.ID)
	}
	return ids
}
