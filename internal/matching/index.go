package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/embedding"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
)

var indexTracer = observability.Tracer("matching/index")

// Hit is a vector search result.
type Hit struct {
	ArticleID  string
	Similarity float64
}

// Index keeps one chromem collection of article vectors per organization and
// resyncs it lazily against the article list it is handed.
type Index struct {
	db       *chromem.DB
	embedder embedding.Embedder
	logger   *zap.Logger

	mu     sync.Mutex
	synced map[string]map[string]time.Time
}

// NewIndex creates an in-memory vector index.
func NewIndex(embedder embedding.Embedder, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		db:       chromem.NewDB(),
		embedder: embedder,
		logger:   logger,
		synced:   make(map[string]map[string]time.Time),
	}
}

func collectionName(orgID string) string {
	return "kb-" + orgID
}

func articleDocument(a domain.KnowledgeArticle) string {
	return a.Title + "\n" + a.Content
}

func (i *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return i.embedder.EmbedQuery(ctx, text)
	}
}

// Sync brings the organization's collection in line with articles.
func (i *Index) Sync(ctx context.Context, orgID string, articles []domain.KnowledgeArticle) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, err := i.syncLocked(ctx, orgID, articles)
	return err
}

func (i *Index) syncLocked(ctx context.Context, orgID string, articles []domain.KnowledgeArticle) (*chromem.Collection, error) {
	collection, err := i.db.GetOrCreateCollection(collectionName(orgID), nil, i.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting collection for %s: %w", orgID, err)
	}
	known := i.synced[orgID]
	if known == nil {
		known = make(map[string]time.Time)
		i.synced[orgID] = known
	}

	current := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		if a.OrganizationID != orgID {
			continue
		}
		current[a.ID] = struct{}{}
		if at, ok := known[a.ID]; ok && at.Equal(a.UpdatedAt) {
			continue
		}
		vec, err := i.embedder.EmbedQuery(ctx, articleDocument(a))
		if errors.Is(err, embedding.ErrEmptyInput) {
			i.logger.Warn("article has no indexable text", zap.String("article_id", a.ID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("embedding article %s: %w", a.ID, err)
		}
		doc := chromem.Document{
			ID:        a.ID,
			Content:   articleDocument(a),
			Embedding: vec,
			Metadata:  map[string]string{"title": a.Title},
		}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("indexing article %s: %w", a.ID, err)
		}
		known[a.ID] = a.UpdatedAt
	}
	for id := range known {
		if _, ok := current[id]; ok {
			continue
		}
		if err := collection.Delete(ctx, nil, nil, id); err != nil {
			return nil, fmt.Errorf("removing article %s: %w", id, err)
		}
		delete(known, id)
	}
	return collection, nil
}

// Query syncs the collection and returns the k nearest articles to text.
func (i *Index) Query(ctx context.Context, orgID, text string, articles []domain.KnowledgeArticle, k int) ([]Hit, error) {
	vec, err := i.embedder.EmbedQuery(ctx, text)
	if errors.Is(err, embedding.ErrEmptyInput) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return i.QueryEmbedding(ctx, orgID, vec, articles, k)
}

// QueryEmbedding syncs the collection and returns the k nearest articles to vec.
func (i *Index) QueryEmbedding(ctx context.Context, orgID string, vec []float32, articles []domain.KnowledgeArticle, k int) ([]Hit, error) {
	ctx, span := indexTracer.Start(ctx, "Index.QueryEmbedding")
	defer span.End()
	span.SetAttributes(attribute.String("organization_id", orgID), attribute.Int("k", k))

	i.mu.Lock()
	collection, err := i.syncLocked(ctx, orgID, articles)
	i.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	count := collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := collection.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", collectionName(orgID), err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ArticleID: r.ID, Similarity: float64(r.Similarity)})
	}
	span.SetAttributes(attribute.Int("results_count", len(hits)))
	return hits, nil
}
