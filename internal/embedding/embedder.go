// Package embedding turns ticket and article text into vectors.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmptyInput indicates the text carried no indexable terms.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder produces vectors for texts.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of two vectors, 0 when either is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Mean returns the element-wise mean of vectors.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

// Normalized returns a unit-length copy of vec.
func Normalized(vec []float32) []float32 {
	out := append([]float32(nil), vec...)
	normalize(out)
	return out
}
