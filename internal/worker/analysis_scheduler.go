package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/service"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// Analyzer runs scheduled knowledge analysis for one organization.
type Analyzer interface {
	Due(ctx context.Context, orgID string) (bool, string, error)
	RunScheduled(ctx context.Context, orgID string) (*service.AnalysisResult, error)
}

// OrganizationLister enumerates organizations with members.
type OrganizationLister interface {
	ListOrganizations(ctx context.Context) ([]string, error)
}

// AnalysisScheduler periodically checks every organization and runs analysis
// where it is due. Trigger queues an immediate check for one organization.
type AnalysisScheduler struct {
	analyzer Analyzer
	orgs     OrganizationLister
	interval time.Duration
	logger   *zap.Logger

	triggers chan string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// SchedulerOption configures an AnalysisScheduler.
type SchedulerOption func(*AnalysisScheduler)

// WithCheckInterval sets how often organizations are polled. Defaults to 15 minutes.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *AnalysisScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) SchedulerOption {
	return func(s *AnalysisScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAnalysisScheduler creates a stopped scheduler.
func NewAnalysisScheduler(analyzer Analyzer, orgs OrganizationLister, opts ...SchedulerOption) (*AnalysisScheduler, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer cannot be nil")
	}
	if orgs == nil {
		return nil, errors.New("organization lister cannot be nil")
	}
	s := &AnalysisScheduler{
		analyzer: analyzer,
		orgs:     orgs,
		interval: 15 * time.Minute,
		logger:   zap.NewNop(),
		triggers: make(chan string, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the background loop. Calling Start twice is an error.
func (s *AnalysisScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("analysis scheduler is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.logger.Info("analysis scheduler started", zap.Duration("interval", s.interval))
	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight check to finish.
func (s *AnalysisScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("analysis scheduler stopped")
}

// Trigger asks for an immediate due check of one organization. It never
// blocks; a full queue drops the request since the next tick covers it.
func (s *AnalysisScheduler) Trigger(orgID string) {
	select {
	case s.triggers <- orgID:
	default:
		s.logger.Debug("analysis trigger dropped", zap.String("organization_id", orgID))
	}
}

func (s *AnalysisScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("analysis scheduler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckAll(ctx)
		case orgID := <-s.triggers:
			s.Check(ctx, orgID)
		}
	}
}

// CheckAll runs analysis for every organization where it is due.
func (s *AnalysisScheduler) CheckAll(ctx context.Context) {
	orgs, err := s.orgs.ListOrganizations(ctx)
	if err != nil {
		s.logger.Error("listing organizations failed", zap.Error(err))
		return
	}
	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return
		}
		s.Check(ctx, orgID)
	}
}

// Check runs analysis for one organization if it is due. It reports whether
// a run completed.
func (s *AnalysisScheduler) Check(ctx context.Context, orgID string) bool {
	due, reason, err := s.analyzer.Due(ctx, orgID)
	if err != nil {
		s.logger.Warn("analysis due check failed", zap.String("organization_id", orgID), zap.Error(err))
		return false
	}
	if !due {
		return false
	}
	s.logger.Info("scheduled analysis starting", zap.String("organization_id", orgID), zap.String("reason", reason))
	if _, err := s.analyzer.RunScheduled(ctx, orgID); err != nil {
		if apperrors.HasCode(err, apperrors.CodeAnalysisInProgress) {
			s.logger.Debug("analysis already running", zap.String("organization_id", orgID))
			return false
		}
		s.logger.Error("scheduled analysis failed", zap.String("organization_id", orgID), zap.Error(err))
		return false
	}
	return true
}
