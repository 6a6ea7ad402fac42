package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingEmbedderIsDeterministic(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	a, err := e.EmbedQuery(ctx, "VPN keeps disconnecting from home")
	require.NoError(t, err)
	b, err := e.EmbedQuery(ctx, "vpn keeps disconnecting from home!")
	require.NoError(t, err)

	assert.Len(t, a, 256)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
}

func TestHashingEmbedderSeparatesTopics(t *testing.T) {
	e := NewHashingEmbedder(512)
	ctx := context.Background()

	vecs, err := e.EmbedDocuments(ctx, []string{
		"printer on floor three is jammed",
		"printer floor three jammed again",
		"cannot reset my email password",
	})
	require.NoError(t, err)

	assert.Greater(t, Cosine(vecs[0], vecs[1]), Cosine(vecs[0], vecs[2]))
}

func TestHashingEmbedderRejectsEmptyText(t *testing.T) {
	_, err := NewHashingEmbedder(64).EmbedQuery(context.Background(), "the and of ?")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestMean(t *testing.T) {
	m := Mean([][]float32{{1, 0}, {0, 1}})
	assert.Equal(t, []float32{0.5, 0.5}, m)
	assert.Nil(t, Mean(nil))
}
