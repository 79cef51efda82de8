package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/supportgw/pkg/config"
)

func TestChromemProvider_UpsertAndSearch(t *testing.T) {
	provider, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()

	docs := map[string][]float32{
		"doc-cyber":   {1, 0, 0},
		"doc-dando":   {0, 1, 0},
		"doc-general": {0, 0, 1},
	}
	for id, vec := range docs {
		require.NoError(t, provider.Upsert(ctx, "knowledge", id, vec, map[string]any{
			"content": "about " + id,
		}))
	}

	results, err := provider.Search(ctx, "knowledge", []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-cyber", results[0].ID)
	assert.Equal(t, "about doc-cyber", results[0].Content)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemProvider_SearchEmptyCollection(t *testing.T) {
	provider, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)
	defer provider.Close()

	results, err := provider.Search(context.Background(), "knowledge", []float32{1, 0, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemProvider_Delete(t *testing.T) {
	provider, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	require.NoError(t, provider.Upsert(ctx, "knowledge", "doc-1", []float32{1, 0}, nil))
	require.NoError(t, provider.Delete(ctx, "knowledge", "doc-1"))

	results, err := provider.Search(ctx, "knowledge", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemProvider_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ChromemConfig{PersistPath: dir}

	provider, err := NewChromemProvider(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, provider.Upsert(ctx, "knowledge", "doc-1", []float32{1, 0}, map[string]any{
		"content": "epli basics",
	}))
	require.NoError(t, provider.Close())

	reloaded, err := NewChromemProvider(cfg)
	require.NoError(t, err)
	defer reloaded.Close()

	results, err := reloaded.Search(ctx, "knowledge", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "epli basics", results[0].Content)
}

func TestNewProviderFromConfig(t *testing.T) {
	provider, err := NewProviderFromConfig(&config.VectorConfig{Type: "chromem"})
	require.NoError(t, err)
	assert.Equal(t, "chromem", provider.Name())

	_, err = NewProviderFromConfig(&config.VectorConfig{Type: "pinecone"})
	require.Error(t, err)

	_, err = NewProviderFromConfig(&config.VectorConfig{Type: "qdrant"})
	require.Error(t, err)
}
