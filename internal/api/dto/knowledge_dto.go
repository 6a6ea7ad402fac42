package dto

import (
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// ArticleRequest creates or replaces an article.
type ArticleRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category *string  `json:"category"`
	Tags     []string `json:"tags"`
}

// ArticleResponse describes a published article.
type ArticleResponse struct {
	ID                 string               `json:"id"`
	Title              string               `json:"title"`
	Content            string               `json:"content"`
	Category           *string              `json:"category,omitempty"`
	Tags               []string             `json:"tags"`
	Author             string               `json:"author"`
	Source             domain.ArticleSource `json:"source"`
	SourceSuggestionID *string              `json:"source_suggestion_id,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewArticleResponse maps an article.
func NewArticleResponse(a *domain.KnowledgeArticle) ArticleResponse {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return ArticleResponse{
		ID:                 a.ID,
		Title:              a.Title,
		Content:            a.Content,
		Category:           a.Category,
		Tags:               tags,
		Author:             a.Author,
		Source:             a.Source,
		SourceSuggestionID: a.SourceSuggestionID,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
