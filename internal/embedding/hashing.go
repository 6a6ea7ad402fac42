package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
)

// HashingEmbedder is a deterministic bag-of-terms embedder. It needs no
// network access and is the default when no model backend is configured.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder builds an embedder with the given dimensionality.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = 512
	}
	return &HashingEmbedder{dims: dims}
}

// EmbedQuery embeds a single text.
func (h *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := textnorm.TopicTerms(text)
	if len(terms) == 0 {
		return nil, ErrEmptyInput
	}
	vec := make([]float32, h.dims)
	for _, term := range terms {
		vec[h.bucket(term)] += 1
	}
	normalize(vec)
	return vec, nil
}

// EmbedDocuments embeds texts in order.
func (h *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := h.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (h *HashingEmbedder) bucket(term string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(term))
	return int(hasher.Sum32() % uint32(h.dims))
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
