package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/llm"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// KnowledgeService manages the organization's published articles.
type KnowledgeService struct {
	articles repository.KnowledgeRepository
	logger   *zap.Logger
}

// ArticleInput is the editable part of an article.
type ArticleInput struct {
	Title    string
	Content  string
	Category *string
	Tags     []string
}

// NewKnowledgeService creates the service.
func NewKnowledgeService(articles repository.KnowledgeRepository, logger *zap.Logger) *KnowledgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeService{articles: articles, logger: logger}
}

func (in ArticleInput) normalize() (ArticleInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" {
		return in, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if in.Content == "" {
		return in, apperrors.NewValidationError("content is required", map[string]any{"field": "content"})
	}
	if err := checkLen("title", in.Title, llm.MaxTitleLen); err != nil {
		return in, err
	}
	if err := checkLen("content", in.Content, llm.MaxContentLen); err != nil {
		return in, err
	}
	if in.Category != nil {
		c := strings.TrimSpace(*in.Category)
		if c == "" {
			in.Category = nil
		} else {
			if err := checkLen("category", c, llm.MaxCategoryLen); err != nil {
				return in, err
			}
			in.Category = &c
		}
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	in.Tags = tags
	return in, nil
}

func checkLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperrors.NewValidationError(field+" too long", map[string]any{"field": field, "max": max})
	}
	return nil
}

// List returns every article of the actor's organization.
func (s *KnowledgeService) List(ctx context.Context, actor domain.Actor) ([]domain.KnowledgeArticle, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	articles, err := s.articles.ListByOrg(ctx, actor.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return articles, nil
}

// Get returns one article.
func (s *KnowledgeService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.KnowledgeArticle, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, actor.OrganizationID, id)
}

// Create publishes a manually written article.
func (s *KnowledgeService) Create(ctx context.Context, actor domain.Actor, input ArticleInput) (*domain.KnowledgeArticle, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}
	author := actor.Name
	if author == "" {
		author = actor.UserID
	}
	article := &domain.KnowledgeArticle{
		OrganizationID: actor.OrganizationID,
		Title:          input.Title,
		Content:        input.Content,
		Category:       input.Category,
		Tags:           input.Tags,
		Author:         author,
		Source:         domain.ArticleSourceManual,
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("knowledge article created",
		zap.String("organization_id", article.OrganizationID),
		zap.String("article_id", article.ID))
	return article, nil
}

// Update rewrites an article's content.
func (s *KnowledgeService) Update(ctx context.Context, actor domain.Actor, id string, input ArticleInput) (*domain.KnowledgeArticle, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	input, err := input.normalize()
	if err != nil {
		return nil, err
	}
	article, err := s.load(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	article.Title = input.Title
	article.Content = input.Content
	article.Category = input.Category
	article.Tags = input.Tags
	if err := s.articles.Update(ctx, article); err != nil {
		return nil, apperrors.MapError(err)
	}
	return article, nil
}

// Delete removes an article.
func (s *KnowledgeService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if _, err := s.load(ctx, actor.OrganizationID, id); err != nil {
		return err
	}
	if err := s.articles.Delete(ctx, actor.OrganizationID, id); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("knowledge article deleted",
		zap.String("organization_id", actor.OrganizationID),
		zap.String("article_id", id))
	return nil
}

func (s *KnowledgeService) load(ctx context.Context, orgID, id string) (*domain.KnowledgeArticle, error) {
	article, err := s.articles.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("knowledge article", map[string]any{"article_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return article, nil
}
