package milvus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primesandzooms/chatbot-backend/internal/document"
)

func TestClampScore(t *testing.T) {
	assert.Equal(t, float32(0), clampScore(-0.4))
	assert.Equal(t, float32(0), clampScore(0))
	assert.Equal(t, float32(0.73), clampScore(0.73))
	assert.Equal(t, float32(1), clampScore(1))
	assert.Equal(t, float32(1), clampScore(1.2))
}

func hitDoc(i int) document.Document {
	return document.New(fmt.Sprintf("chunk %d", i), map[string]any{
		document.MetaSource: fmt.Sprintf("https://primesandzooms.com/%d", i),
	})
}

func TestCollectHits_EveryScoreMeetsThreshold(t *testing.T) {
	scores := []float32{1.2, 0.9, 0.7, 0.69, -0.3}

	hits := collectHits(scores, 10, 0.7, hitDoc)

	require.Len(t, hits, 3)
	assert.Equal(t, float32(1), hits[0].Score)
	assert.Equal(t, float32(0.9), hits[1].Score)
	assert.Equal(t, float32(0.7), hits[2].Score, "threshold comparison is inclusive")
	assert.Equal(t, "chunk 2", hits[2].Document.Content)

	for _, hit := range hits {
		assert.GreaterOrEqual(t, hit.Score, float32(0.7))
	}
}

func TestCollectHits_NeverMoreThanK(t *testing.T) {
	scores := []float32{0.99, 0.98, 0.97, 0.96, 0.95}

	hits := collectHits(scores, 3, 0.5, hitDoc)

	require.Len(t, hits, 3)
	// The top-scored hits survive, in order.
	assert.Equal(t, float32(0.99), hits[0].Score)
	assert.Equal(t, float32(0.97), hits[2].Score)
	assert.Equal(t, "chunk 0", hits[0].Document.Content)
}

func TestCollectHits_NegativeCosineClampsToZero(t *testing.T) {
	hits := collectHits([]float32{-0.8}, 5, 0, hitDoc)
	require.Len(t, hits, 1)
	assert.Equal(t, float32(0), hits[0].Score)

	assert.Empty(t, collectHits([]float32{-0.8}, 5, 0.1, hitDoc))
}

func TestCollectHits_Empty(t *testing.T) {
	assert.Empty(t, collectHits(nil, 5, 0.7, hitDoc))
	assert.Empty(t, collectHits([]float32{0.9}, 0, 0.7, hitDoc))
}
