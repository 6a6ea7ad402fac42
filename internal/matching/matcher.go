// Package matching ranks knowledge articles against ticket text.
package matching

import (
	"context"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/embedding"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
)

var matcherTracer = observability.Tracer("matching")

const (
	// keywordScoreCeiling is the keyword score treated as a full match.
	keywordScoreCeiling = 12.0
	keywordWeight       = 0.8
	vectorWeight        = 0.2
)

// Candidate is a ranked article.
type Candidate struct {
	Article      domain.KnowledgeArticle
	KeywordScore float64
	Similarity   float64
	Relevance    float64
}

// Result is the outcome of a match.
type Result struct {
	Intent           Intent
	IntentConfidence float64
	Keywords         []string
	Candidates       []Candidate
}

// Best returns the top candidate, if any.
func (r *Result) Best() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Matcher blends keyword relevance with vector similarity.
type Matcher struct {
	index *Index
}

// NewMatcher builds a matcher over the index.
func NewMatcher(index *Index) *Matcher {
	return &Matcher{index: index}
}

// Index exposes the underlying vector index.
func (m *Matcher) Index() *Index {
	return m.index
}

// Match returns up to k candidates ordered by relevance. Articles outside
// orgID are ignored.
func (m *Matcher) Match(ctx context.Context, orgID, text string, articles []domain.KnowledgeArticle, k int) (*Result, error) {
	ctx, span := matcherTracer.Start(ctx, "Matcher.Match")
	defer span.End()

	intent, intentConf := ClassifyIntent(text)
	keywords := textnorm.Keywords(text)
	result := &Result{Intent: intent, IntentConfidence: intentConf, Keywords: keywords}

	scoped := make([]domain.KnowledgeArticle, 0, len(articles))
	for _, a := range articles {
		if a.OrganizationID == orgID {
			scoped = append(scoped, a)
		}
	}
	if len(scoped) == 0 {
		return result, nil
	}

	similarity := make(map[string]float64, len(scoped))
	if m.index != nil {
		hits, err := m.index.Query(ctx, orgID, text, scoped, len(scoped))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, h := range hits {
			similarity[h.ArticleID] = h.Similarity
		}
	}

	for _, a := range scoped {
		score := KeywordScore(a, keywords, intent)
		sim := math.Max(0, similarity[a.ID])
		if score == 0 && sim == 0 {
			continue
		}
		rel := keywordWeight*math.Min(1, score/keywordScoreCeiling) + vectorWeight*sim
		result.Candidates = append(result.Candidates, Candidate{
			Article:      a,
			KeywordScore: score,
			Similarity:   sim,
			Relevance:    math.Min(1, rel),
		})
	}
	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Relevance > result.Candidates[j].Relevance
	})
	if k > 0 && len(result.Candidates) > k {
		result.Candidates = result.Candidates[:k]
	}
	span.SetAttributes(
		attribute.String("intent", string(intent)),
		attribute.Int("candidates", len(result.Candidates)),
	)
	return result, nil
}

// Nearest returns the highest vector similarity between vec and any article of the organization.
func (m *Matcher) Nearest(ctx context.Context, orgID string, vec []float32, articles []domain.KnowledgeArticle) (Hit, bool, error) {
	if m.index == nil || len(vec) == 0 {
		return Hit{}, false, nil
	}
	hits, err := m.index.QueryEmbedding(ctx, orgID, embedding.Normalized(vec), articles, 1)
	if err != nil || len(hits) == 0 {
		return Hit{}, false, err
	}
	return hits[0], true, nil
}
