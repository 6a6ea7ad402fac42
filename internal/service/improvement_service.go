package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/clustering"
	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/llm"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	"github.com/vicmordi/AIHelpdesk/internal/matching"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// Dedup buckets a cluster can land in.
const (
	BucketNewDraft           = "new_draft"
	BucketPreviouslyRejected = "previously_rejected"
	BucketAlreadyApproved    = "already_approved"
	BucketExistingDraft      = "existing_draft"
	BucketAlreadyCovered     = "already_covered"
)

const defaultAnalysisLockTTL = 15 * time.Minute

// CoverageIndex finds the published article closest to a vector.
type CoverageIndex interface {
	Nearest(ctx context.Context, orgID string, vec []float32, articles []domain.KnowledgeArticle) (matching.Hit, bool, error)
}

// ClusterReport describes one recurring-issue cluster and where it landed.
type ClusterReport struct {
	ClusterID    string
	Signature    string
	Topic        string
	TicketCount  int
	TicketIDs    []string
	Bucket       string
	SuggestionID string
	ArticleID    string
	Similarity   float64
}

// AnalysisResult reports one knowledge analysis run.
type AnalysisResult struct {
	OrganizationID     string
	RunAt              time.Time
	Scheduled          bool
	TicketsAnalyzed    int
	ClustersFound      int
	NewDrafts          []domain.Suggestion
	PreviouslyRejected []ClusterReport
	AlreadyApproved    []ClusterReport
	ExistingDrafts     []ClusterReport
	AlreadyCovered     []ClusterReport
	SkippedTickets     []string
}

// ImprovementService clusters handled tickets and drafts knowledge suggestions.
type ImprovementService struct {
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	knowledge   repository.KnowledgeRepository
	suggestions repository.SuggestionRepository
	states      repository.AnalysisStateRepository
	settings    repository.OrgSettingsRepository
	clusterer   *clustering.Clusterer
	coverage    CoverageIndex
	generator   llm.Generator
	fallback    llm.Generator
	locker      lock.Locker
	counter     ResolvedCounter
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	cfg         config.AnalysisConfig
	lockTTL     time.Duration
	timeout     time.Duration
	now         func() time.Time
}

// ImprovementDependencies bundles collaborators for the improvement service.
type ImprovementDependencies struct {
	TicketRepo      repository.TicketRepository
	MessageRepo     repository.TicketMessageRepository
	KnowledgeRepo   repository.KnowledgeRepository
	SuggestionRepo  repository.SuggestionRepository
	StateRepo       repository.AnalysisStateRepository
	SettingsRepo    repository.OrgSettingsRepository
	Clusterer       *clustering.Clusterer
	Coverage        CoverageIndex
	Generator       llm.Generator
	Locker          lock.Locker
	Counter         ResolvedCounter
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Config          config.AnalysisConfig
	LockTTL         time.Duration
	UpstreamTimeout time.Duration
}

// NewImprovementService creates the service.
func NewImprovementService(deps ImprovementDependencies) *ImprovementService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := llm.NewTemplateGenerator()
	generator := deps.Generator
	if generator == nil {
		generator = fallback
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultAnalysisLockTTL
	}
	return &ImprovementService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		knowledge:   deps.KnowledgeRepo,
		suggestions: deps.SuggestionRepo,
		states:      deps.StateRepo,
		settings:    deps.SettingsRepo,
		clusterer:   deps.Clusterer,
		coverage:    deps.Coverage,
		generator:   generator,
		fallback:    fallback,
		locker:      deps.Locker,
		counter:     deps.Counter,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		cfg:         deps.Config,
		lockTTL:     lockTTL,
		timeout:     deps.UpstreamTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RunAnalysis runs knowledge analysis for the actor's organization over the
// given window; a non-positive window uses the configured lookback.
func (s *ImprovementService) RunAnalysis(ctx context.Context, actor domain.Actor, window time.Duration) (*AnalysisResult, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	return s.run(ctx, actor.OrganizationID, window, false)
}

// RunScheduled runs analysis on behalf of the background scheduler.
func (s *ImprovementService) RunScheduled(ctx context.Context, orgID string) (*AnalysisResult, error) {
	if orgID == "" {
		return nil, apperrors.NewValidationError("organization is required", nil)
	}
	return s.run(ctx, orgID, 0, true)
}

// Due reports whether a scheduled run should start: never analyzed, the
// interval elapsed, or enough tickets were handled since the last run.
func (s *ImprovementService) Due(ctx context.Context, orgID string) (bool, string, error) {
	state, err := s.states.Get(ctx, orgID)
	if err != nil {
		return false, "", apperrors.MapError(err)
	}
	if state.LastRunAt == nil {
		return true, "never_run", nil
	}
	if s.now().Sub(*state.LastRunAt) >= s.cfg.Interval() {
		return true, "interval", nil
	}
	if s.cfg.ResolvedThreshold > 0 {
		handled, err := s.tickets.CountHandled(ctx, orgID)
		if err != nil {
			return false, "", apperrors.MapError(err)
		}
		if handled-state.ResolvedCountAtLastRun >= s.cfg.ResolvedThreshold {
			return true, "resolved_threshold", nil
		}
	}
	return false, "", nil
}

// ResolvedThreshold is the number of handled tickets that triggers a run.
func (s *ImprovementService) ResolvedThreshold() int {
	return s.cfg.ResolvedThreshold
}

func (s *ImprovementService) run(ctx context.Context, orgID string, window time.Duration, scheduled bool) (*AnalysisResult, error) {
	if s.locker != nil {
		lease, ok, err := s.locker.TryAcquire(ctx, lock.AnalysisKey(orgID), s.lockTTL)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !ok {
			return nil, apperrors.NewAnalysisInProgress(orgID)
		}
		held, stop := lock.KeepAlive(ctx, lease, s.lockTTL)
		defer func() {
			stop()
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("analysis lock release failed", zap.String("organization_id", orgID), zap.Error(err))
			}
		}()
		ctx = held
	}

	result, err := s.analyze(ctx, orgID, window, scheduled)
	if err != nil && errors.Is(context.Cause(ctx), lock.ErrLeaseLost) {
		s.metrics.RecordAnalysisRun("failed")
		s.logger.Error("knowledge analysis lost its lock", zap.String("organization_id", orgID), zap.Error(err))
		return nil, apperrors.NewAnalysisInProgress(orgID)
	}
	if err != nil {
		s.metrics.RecordAnalysisRun("failed")
		s.logger.Error("knowledge analysis failed", zap.String("organization_id", orgID), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordAnalysisRun("completed")
	return result, nil
}

func (s *ImprovementService) analyze(ctx context.Context, orgID string, window time.Duration, scheduled bool) (*AnalysisResult, error) {
	cfg := s.cfg
	if s.settings != nil {
		settings, err := s.settings.Get(ctx, orgID)
		if err != nil {
			s.logger.Warn("org settings unavailable, using defaults", zap.String("organization_id", orgID), zap.Error(err))
		} else {
			cfg = cfg.WithOverrides(settings)
		}
	}
	if window <= 0 {
		window = cfg.Lookback()
	}
	runAt := s.now()

	handledCount, err := s.tickets.CountHandled(ctx, orgID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	tickets, err := s.tickets.ListForAnalysis(ctx, orgID, runAt.Add(-window))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	threads, err := s.messages.ListByTickets(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	outcome, err := s.clusterer.Cluster(ctx, analysisItems(tickets, threads), clustering.Options{
		SimilarityThreshold: cfg.SimilarityThreshold,
		MinClusterSize:      cfg.MinClusterSize,
		Concurrency:         cfg.Concurrency,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	existing, err := s.suggestions.ListAll(ctx, orgID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	articles, err := s.knowledge.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := &AnalysisResult{
		OrganizationID:  orgID,
		RunAt:           runAt,
		Scheduled:       scheduled,
		TicketsAnalyzed: outcome.Analyzed,
		ClustersFound:   len(outcome.Clusters),
		SkippedTickets:  outcome.Skipped,
	}

	for _, c := range outcome.Clusters {
		report := ClusterReport{
			ClusterID:   c.ID,
			Signature:   c.Signature,
			Topic:       c.Topic,
			TicketCount: c.Size(),
			TicketIDs:   c.TicketIDs(),
		}

		if prior, ok := matchSuggestion(existing, c, cfg.TopicTolerance); ok {
			report.SuggestionID = prior.ID
			report.Bucket = bucketFor(prior.Status)
			result.add(report)
			continue
		}

		if hit, ok := s.covered(ctx, orgID, c, articles, cfg.KBCoverageThreshold); ok {
			report.Bucket = BucketAlreadyCovered
			report.ArticleID = hit.ArticleID
			report.Similarity = hit.Similarity
			result.add(report)
			continue
		}

		suggestion, err := s.draft(ctx, orgID, c, cfg.MinClusterSize)
		if err != nil {
			return nil, err
		}
		existing = append(existing, *suggestion)
		result.NewDrafts = append(result.NewDrafts, *suggestion)
	}

	state := &domain.AnalysisState{
		OrganizationID:          orgID,
		LastRunAt:               &runAt,
		RecurringIssuesDetected: result.ClustersFound,
		ResolvedCountAtLastRun:  handledCount,
		LastRunNewDrafts:        suggestionIDs(result.NewDrafts),
		LastRunRejected:         reportSuggestionIDs(result.PreviouslyRejected),
		LastRunApproved:         reportSuggestionIDs(result.AlreadyApproved),
		LastRunCovered:          reportArticleIDs(result.AlreadyCovered),
		LastRunSkippedTickets:   result.SkippedTickets,
	}
	if err := s.states.Save(ctx, state); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.counter != nil {
		if err := s.counter.ResetResolved(ctx, orgID); err != nil {
			s.logger.Warn("resetting resolved counter failed", zap.String("organization_id", orgID), zap.Error(err))
		}
	}

	s.metrics.RecordClusterOutcome(BucketNewDraft, len(result.NewDrafts))
	s.metrics.RecordClusterOutcome(BucketPreviouslyRejected, len(result.PreviouslyRejected))
	s.metrics.RecordClusterOutcome(BucketAlreadyApproved, len(result.AlreadyApproved))
	s.metrics.RecordClusterOutcome(BucketExistingDraft, len(result.ExistingDrafts))
	s.metrics.RecordClusterOutcome(BucketAlreadyCovered, len(result.AlreadyCovered))

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:           events.EventAnalysisCompleted,
		OrganizationID: orgID,
		Actor:          aiActor(),
		Payload: events.AnalysisCompletedPayload{
			NewDrafts:          len(result.NewDrafts),
			PreviouslyRejected: len(result.PreviouslyRejected),
			AlreadyCovered:     len(result.AlreadyCovered),
			AlreadyApproved:    len(result.AlreadyApproved),
			ExistingDrafts:     len(result.ExistingDrafts),
			TicketsAnalyzed:    result.TicketsAnalyzed,
			Scheduled:          scheduled,
		},
	})
	s.logger.Info("knowledge analysis completed",
		zap.String("organization_id", orgID),
		zap.Bool("scheduled", scheduled),
		zap.Int("tickets_analyzed", result.TicketsAnalyzed),
		zap.Int("clusters", result.ClustersFound),
		zap.Int("new_drafts", len(result.NewDrafts)),
		zap.Int("skipped_tickets", len(result.SkippedTickets)))
	return result, nil
}

func (r *AnalysisResult) add(report ClusterReport) {
	switch report.Bucket {
	case BucketPreviouslyRejected:
		r.PreviouslyRejected = append(r.PreviouslyRejected, report)
	case BucketAlreadyApproved:
		r.AlreadyApproved = append(r.AlreadyApproved, report)
	case BucketExistingDraft:
		r.ExistingDrafts = append(r.ExistingDrafts, report)
	case BucketAlreadyCovered:
		r.AlreadyCovered = append(r.AlreadyCovered, report)
	}
}

// analysisItems turns tickets into clustering input. Resolutions are the
// staff replies, plus the assistant's replies on tickets it handled alone.
func analysisItems(tickets []domain.Ticket, threads map[string][]domain.TicketMessage) []clustering.Item {
	items := make([]clustering.Item, 0, len(tickets))
	for _, t := range tickets {
		issue := t.Message
		if t.Summary != nil && strings.TrimSpace(*t.Summary) != "" && *t.Summary != t.Message {
			issue += "\n" + *t.Summary
		}
		var resolutions []string
		for _, m := range threads[t.ID] {
			switch {
			case m.Sender == domain.SenderAdmin:
				resolutions = append(resolutions, m.Body)
			case m.Sender == domain.SenderAI && !t.Escalated:
				resolutions = append(resolutions, m.Body)
			}
		}
		items = append(items, clustering.Item{
			TicketID:    t.ID,
			Issue:       issue,
			Resolutions: resolutions,
			CreatedAt:   t.CreatedAt,
		})
	}
	return items
}

var statusPriority = map[domain.SuggestionStatus]int{
	domain.SuggestionStatusRejected: 3,
	domain.SuggestionStatusApproved: 2,
	domain.SuggestionStatusDraft:    1,
}

// matchSuggestion finds the prior suggestion covering the cluster: first by
// topic signature or topic similarity, then by identical membership. When
// several match, rejected wins over approved, approved over draft.
func matchSuggestion(existing []domain.Suggestion, c clustering.Cluster, tolerance float64) (domain.Suggestion, bool) {
	byTopic := func(s domain.Suggestion) bool {
		if s.TopicSignature == c.Signature {
			return true
		}
		if s.NormalizedTopic == "" || c.Topic == "" {
			return false
		}
		return textnorm.Jaccard(s.NormalizedTopic, c.Topic) >= tolerance
	}
	byMembers := func(s domain.Suggestion) bool {
		return s.ClusterID == c.ID
	}
	for _, match := range []func(domain.Suggestion) bool{byTopic, byMembers} {
		var best domain.Suggestion
		found := false
		for _, s := range existing {
			if !match(s) {
				continue
			}
			if !found || statusPriority[s.Status] > statusPriority[best.Status] {
				best, found = s, true
			}
		}
		if found {
			return best, true
		}
	}
	return domain.Suggestion{}, false
}

func bucketFor(status domain.SuggestionStatus) string {
	switch status {
	case domain.SuggestionStatusRejected:
		return BucketPreviouslyRejected
	case domain.SuggestionStatusApproved:
		return BucketAlreadyApproved
	default:
		return BucketExistingDraft
	}
}

func (s *ImprovementService) covered(ctx context.Context, orgID string, c clustering.Cluster, articles []domain.KnowledgeArticle, threshold float64) (matching.Hit, bool) {
	if s.coverage == nil || len(articles) == 0 || len(c.Centroid) == 0 {
		return matching.Hit{}, false
	}
	hit, ok, err := s.coverage.Nearest(ctx, orgID, c.Centroid, articles)
	if err != nil {
		s.logger.Warn("coverage check failed, treating cluster as uncovered",
			zap.String("organization_id", orgID),
			zap.String("cluster_id", c.ID),
			zap.Error(err))
		return matching.Hit{}, false
	}
	return hit, ok && hit.Similarity >= threshold
}

func (s *ImprovementService) draft(ctx context.Context, orgID string, c clustering.Cluster, minSize int) (*domain.Suggestion, error) {
	req := llm.DraftRequest{Topic: c.Topic}
	for _, m := range c.Members {
		req.Issues = append(req.Issues, m.Issue)
		req.Resolutions = append(req.Resolutions, m.Resolutions...)
	}

	genCtx, cancel := s.bounded(ctx)
	draft, err := s.generator.DraftArticle(genCtx, req)
	cancel()
	if err != nil || draft == nil || strings.TrimSpace(draft.Content) == "" {
		if err != nil && !errors.Is(err, context.Canceled) {
			s.metrics.RecordUpstreamFailure("drafting")
		}
		s.logger.Warn("draft generation failed, using template",
			zap.String("organization_id", orgID),
			zap.String("cluster_id", c.ID),
			zap.Error(err))
		draft, err = s.fallback.DraftArticle(ctx, req)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = "Draft from resolved tickets"
	}
	suggestion := &domain.Suggestion{
		OrganizationID:  orgID,
		ClusterID:       c.ID,
		TopicSignature:  c.Signature,
		NormalizedTopic: c.Topic,
		Title:           textnorm.Truncate(title, llm.MaxTitleLen),
		Category:        textnorm.Truncate(strings.TrimSpace(draft.Category), llm.MaxCategoryLen),
		Content:         textnorm.Truncate(draft.Content, llm.MaxContentLen),
		Tags:            draft.Tags,
		ClusterSummary:  draft.ClusterSummary,
		Status:          domain.SuggestionStatusDraft,
		ConfidenceScore: ConfidenceScore(c.Tightness, c.Size(), minSize),
		TicketCount:     c.Size(),
		RelatedTickets:  c.TicketIDs(),
	}
	if err := s.suggestions.Create(ctx, suggestion); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("knowledge suggestion drafted",
		zap.String("organization_id", orgID),
		zap.String("suggestion_id", suggestion.ID),
		zap.String("cluster_id", c.ID),
		zap.Int("ticket_count", suggestion.TicketCount),
		zap.Int("confidence", suggestion.ConfidenceScore))
	return suggestion, nil
}

func (s *ImprovementService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// ConfidenceScore rates a cluster 0-100 from its tightness and its size
// relative to twice the minimum cluster size.
func ConfidenceScore(tightness float64, size, minSize int) int {
	if minSize <= 0 {
		minSize = 1
	}
	sizeFactor := math.Min(1, float64(size)/float64(2*minSize))
	score := int(math.Round(100 * (0.85*tightness + 0.15*sizeFactor)))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

func suggestionIDs(items []domain.Suggestion) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.ID)
	}
	return out
}

func reportSuggestionIDs(reports []ClusterReport) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.SuggestionID)
	}
	return out
}

func reportArticleIDs(reports []ClusterReport) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.ArticleID)
	}
	return out
}
