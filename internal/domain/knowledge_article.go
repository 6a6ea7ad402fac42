package domain

import "time"

// ArticleSource records where an article came from.
type ArticleSource string

const (
	ArticleSourceManual               ArticleSource = "manual"
	ArticleSourceKnowledgeImprovement ArticleSource = "knowledge_improvement"
)

// KnowledgeArticle is a published, organization-scoped help article.
type KnowledgeArticle struct {
	ID                 string
	OrganizationID     string
	Title              string
	Content            string
	Category           *string
	Tags               []string
	Author             string
	Source             ArticleSource
	SourceSuggestionID *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
