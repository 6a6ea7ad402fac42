// Package llm synthesizes answers, triage notes and draft articles.
package llm

import (
	"context"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// AnswerRequest asks for a direct answer grounded on one article.
type AnswerRequest struct {
	Question string
	Article  domain.KnowledgeArticle
}

// Answer is a synthesized reply. Confidence is nil when the backend gives none.
type Answer struct {
	Reply      string
	Confidence *float64
	Escalate   bool
	Reason     string
}

// Triage is the note attached to an escalated ticket.
type Triage struct {
	Category string
	Summary  string
}

// DraftRequest carries the texts of one recurring-issue cluster.
type DraftRequest struct {
	Topic       string
	Issues      []string
	Resolutions []string
}

// Draft is a proposed knowledge article.
type Draft struct {
	Title          string
	Content        string
	Category       string
	Tags           []string
	ClusterSummary string
}

// Generator is the text generation backend.
type Generator interface {
	Answer(ctx context.Context, req AnswerRequest) (*Answer, error)
	Triage(ctx context.Context, question string) (*Triage, error)
	DraftArticle(ctx context.Context, req DraftRequest) (*Draft, error)
}

// Length caps applied to generated drafts.
const (
	MaxTitleLen    = 200
	MaxContentLen  = 50000
	MaxCategoryLen = 128
	maxSummaryLen  = 200
)
