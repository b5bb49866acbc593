package retriever

import (
	"context"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/models"
)

// Retriever answers free-text queries with the nearest knowledge chunks from
// a collection's vector store.
type Retriever struct {
	registry *Registry
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewRetriever wires a registry and an embedder together.
func NewRetriever(registry *Registry, embedder embedding.Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{registry: registry, embedder: embedder, logger: logger}
}

// Retrieve returns up to k chunk texts for the query, nearest first. An empty
// collection returns an empty slice without calling the embedder. Embedding
// or search failures are logged and degrade to an empty result so a live call
// is never dropped over a retrieval hiccup.
func (r *Retriever) Retrieve(ctx context.Context, org, query string, k int) []string {
	results, err := r.retrieve(ctx, org, query, k)
	if err != nil {
		r.logger.Warn("retrieval degraded to empty result",
			zap.String("org", org), zap.Error(err))
		return []string{}
	}
	chunks := make([]string, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, res.Chunk)
	}
	return chunks
}

// RetrieveChunks is Retrieve with metadata and distances kept, for the HTTP
// API. Failures are returned rather than swallowed.
func (r *Retriever) RetrieveChunks(ctx context.Context, org, query string, k int) ([]models.RetrievedChunk, error) {
	return r.retrieve(ctx, org, query, k)
}

func (r *Retriever) retrieve(ctx context.Context, org, query string, k int) ([]models.RetrievedChunk, error) {
	store, err := r.registry.Store(org)
	if err != nil {
		return nil, err
	}
	if store.Size() == 0 {
		return []models.RetrievedChunk{}, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.RetrievedChunk{}
	}
	return results, nil
}
