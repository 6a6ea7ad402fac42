package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/llm"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// MaxRejectReasonLen caps a rejection reason.
const MaxRejectReasonLen = 1000

// ReviewService approves, rejects and edits drafted suggestions.
type ReviewService struct {
	suggestions repository.SuggestionRepository
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// ReviewDependencies bundles collaborators for the review service.
type ReviewDependencies struct {
	SuggestionRepo repository.SuggestionRepository
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// SuggestionPatch carries draft edits; nil fields stay unchanged.
type SuggestionPatch struct {
	Title    *string
	Content  *string
	Category *string
}

// NewReviewService creates the service.
func NewReviewService(deps ReviewDependencies) *ReviewService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		suggestions: deps.SuggestionRepo,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns suggestions newest first, optionally filtered by status.
func (s *ReviewService) List(ctx context.Context, actor domain.Actor, status *domain.SuggestionStatus, limit, offset int) ([]domain.Suggestion, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	if status != nil {
		switch *status {
		case domain.SuggestionStatusDraft, domain.SuggestionStatusApproved, domain.SuggestionStatusRejected:
		default:
			return nil, apperrors.NewValidationError("unknown suggestion status", map[string]any{"status": *status})
		}
	}
	items, err := s.suggestions.List(ctx, repository.SuggestionFilter{
		OrganizationID: actor.OrganizationID,
		Status:         status,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// Get returns one suggestion.
func (s *ReviewService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Suggestion, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, actor.OrganizationID, id)
}

// Approve publishes the draft as a knowledge article.
func (s *ReviewService) Approve(ctx context.Context, actor domain.Actor, id string) (*domain.KnowledgeArticle, *domain.Suggestion, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, nil, err
	}
	suggestion, err := s.load(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, nil, err
	}
	if !suggestion.IsDraft() {
		return nil, nil, notDraft(suggestion)
	}

	var category *string
	if c := strings.TrimSpace(suggestion.Category); c != "" {
		category = &c
	}
	author := actor.Name
	if author == "" {
		author = actor.UserID
	}
	sourceID := suggestion.ID
	article := &domain.KnowledgeArticle{
		OrganizationID:     suggestion.OrganizationID,
		Title:              suggestion.Title,
		Content:            suggestion.Content,
		Category:           category,
		Tags:               suggestion.Tags,
		Author:             author,
		Source:             domain.ArticleSourceKnowledgeImprovement,
		SourceSuggestionID: &sourceID,
	}
	if err := s.suggestions.Approve(ctx, suggestion, article, actor.UserID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotDraft) {
			return nil, nil, notDraft(suggestion)
		}
		return nil, nil, apperrors.MapError(err)
	}

	s.metrics.RecordReview("approved")
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:           events.EventSuggestionApproved,
		OrganizationID: suggestion.OrganizationID,
		Actor:          eventActor(actor),
		Payload: events.SuggestionReviewedPayload{
			SuggestionID: suggestion.ID,
			LinkedKBID:   suggestion.LinkedKBID,
		},
	})
	s.logger.Info("suggestion approved",
		zap.String("organization_id", suggestion.OrganizationID),
		zap.String("suggestion_id", suggestion.ID),
		zap.String("article_id", article.ID))
	return article, suggestion, nil
}

// Reject closes the draft. The reason is trimmed and capped; blank means none.
func (s *ReviewService) Reject(ctx context.Context, actor domain.Actor, id string, reason *string) (*domain.Suggestion, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	suggestion, err := s.load(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if !suggestion.IsDraft() {
		return nil, notDraft(suggestion)
	}
	var cleaned *string
	if reason != nil {
		if r := textnorm.Truncate(strings.TrimSpace(*reason), MaxRejectReasonLen); r != "" {
			cleaned = &r
		}
	}
	if err := s.suggestions.Reject(ctx, suggestion, actor.UserID, cleaned, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotDraft) {
			return nil, notDraft(suggestion)
		}
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordReview("rejected")
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:           events.EventSuggestionRejected,
		OrganizationID: suggestion.OrganizationID,
		Actor:          eventActor(actor),
		Payload: events.SuggestionReviewedPayload{
			SuggestionID: suggestion.ID,
			Reason:       cleaned,
		},
	})
	return suggestion, nil
}

// EditDraft rewrites the editable fields of a draft.
func (s *ReviewService) EditDraft(ctx context.Context, actor domain.Actor, id string, patch SuggestionPatch) (*domain.Suggestion, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	suggestion, err := s.load(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if !suggestion.IsDraft() {
		return nil, notDraft(suggestion)
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
		}
		if err := checkLen("title", title, llm.MaxTitleLen); err != nil {
			return nil, err
		}
		suggestion.Title = title
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return nil, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
		}
		if err := checkLen("content", content, llm.MaxContentLen); err != nil {
			return nil, err
		}
		suggestion.Content = content
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if err := checkLen("category", category, llm.MaxCategoryLen); err != nil {
			return nil, err
		}
		suggestion.Category = category
	}
	if err := s.suggestions.UpdateDraft(ctx, suggestion); err != nil {
		if errors.Is(err, repository.ErrNotDraft) {
			return nil, notDraft(suggestion)
		}
		return nil, apperrors.MapError(err)
	}
	return suggestion, nil
}

func (s *ReviewService) load(ctx context.Context, orgID, id string) (*domain.Suggestion, error) {
	suggestion, err := s.suggestions.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("suggestion", map[string]any{"suggestion_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return suggestion, nil
}

func notDraft(s *domain.Suggestion) error {
	return apperrors.NewConflict("suggestion is no longer a draft", map[string]any{
		"suggestion_id": s.ID,
		"status":        s.Status,
	})
}
