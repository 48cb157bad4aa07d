package rag_service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/docquery/document"
)

// Retriever embeds a query with the same model used for chunk embeddings
// and ranks stored chunks by cosine similarity. Scores are raw cosine
// similarity in [0,1]; any rescaling for display happens at the
// presentation boundary.
type Retriever struct {
	store    Store
	embedder Embedder
	topK     int
	logger   *slog.Logger
}

func NewRetriever(store Store, embedder Embedder, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve returns the top-k chunk matches for the query. An empty store,
// or one with no completed documents, yields zero matches and no error.
// Only chunks embedded with the retriever's current model are considered;
// vectors from a different model are never compared.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]document.ChunkMatch, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}
	if len(vectors[0]) != r.embedder.Dimension() {
		return nil, fmt.Errorf("query embedding dimension mismatch: expected %d, got %d", r.embedder.Dimension(), len(vectors[0]))
	}

	matches, err := r.store.NearestChunks(ctx, vectors[0], r.embedder.Model(), r.topK)
	if err != nil {
		return nil, fmt.Errorf("nearest chunk search failed: %w", err)
	}

	r.logger.Debug("Retrieved chunks for query",
		slog.Int("matches", len(matches)),
		slog.Int("top_k", r.topK))

	return matches, nil
}
