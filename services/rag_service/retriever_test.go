package rag_service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/docquery/document"
)

func TestRetrieveEmptyStoreReturnsNoMatches(t *testing.T) {
	store := NewMemoryStore()
	embedder := NewMockEmbedder()
	r := NewRetriever(store, embedder, 5, testLogger())

	matches, err := r.Retrieve(context.Background(), "anything at all")
	require.NoError(t, err, "an empty store is a valid state, not an error")
	assert.Empty(t, matches)
}

func TestRetrieveRanksUniquePhraseFirst(t *testing.T) {
	store := NewMemoryStore()
	p, _, _, _ := newTestProcessor(store)

	text := "Alpha facts live here in the long opening passage of the file. Beta facts follow now with extra detail for padding. Gamma zebra quartz ends the story."
	doc, err := p.IngestUpload(context.Background(), "facts.txt", int64(len(text)), []byte(text))
	require.NoError(t, err)
	require.GreaterOrEqual(t, doc.TotalChunks, 2, "test needs at least two chunks")

	r := NewRetriever(store, NewMockEmbedder(), 5, testLogger())
	matches, err := r.Retrieve(context.Background(), "gamma zebra quartz")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, doc.TotalChunks-1, matches[0].ChunkIndex,
		"the chunk containing the unique phrase must rank first")
	if len(matches) > 1 {
		assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
	}
	assert.Equal(t, "facts.txt", matches[0].DocumentTitle)
}

func TestRetrieveIsDeterministic(t *testing.T) {
	store := NewMemoryStore()
	p, _, _, _ := newTestProcessor(store)

	texts := []string{
		"Rivers carve valleys over geological time. Deltas form where rivers meet the sea.",
		"Glaciers grind mountains into gravel slowly. Moraines mark where the ice once stood.",
	}
	for i, text := range texts {
		_, err := p.IngestUpload(context.Background(), fmt.Sprintf("doc-%d.txt", i), int64(len(text)), []byte(text))
		require.NoError(t, err)
	}

	r := NewRetriever(store, NewMockEmbedder(), 5, testLogger())

	first, err := r.Retrieve(context.Background(), "where rivers meet the sea")
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "where rivers meet the sea")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "rank %d differs between runs", i)
		assert.Equal(t, first[i].Similarity, second[i].Similarity)
	}
}

func TestRetrieveSkipsUnfinishedDocuments(t *testing.T) {
	store := NewMemoryStore()
	embedder := NewMockEmbedder()

	// A document stuck in processing with chunks already inserted must stay
	// invisible to retrieval.
	doc := &document.Document{ID: "doc-1", Title: "partial.txt", Status: document.StatusPending, EmbeddingModel: embedder.Model()}
	require.NoError(t, store.CreateDocument(context.Background(), doc))
	require.NoError(t, store.MarkProcessing(context.Background(), doc.ID))

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"hidden content"})
	require.NoError(t, err)
	require.NoError(t, store.InsertChunks(context.Background(), doc.ID, []document.Chunk{
		{ID: "c-1", DocumentID: doc.ID, ChunkIndex: 0, Content: "hidden content", Embedding: vectors[0]},
	}))

	r := NewRetriever(store, embedder, 5, testLogger())
	matches, err := r.Retrieve(context.Background(), "hidden content")
	require.NoError(t, err)
	assert.Empty(t, matches, "chunks of unfinished documents must not be retrievable")
}

func TestRetrieveFiltersForeignEmbeddingModel(t *testing.T) {
	store := NewMemoryStore()
	embedder := NewMockEmbedder()

	doc := &document.Document{ID: "doc-1", Title: "old.txt", Status: document.StatusPending, EmbeddingModel: "legacy-model-000"}
	require.NoError(t, store.CreateDocument(context.Background(), doc))
	require.NoError(t, store.MarkProcessing(context.Background(), doc.ID))

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"legacy content"})
	require.NoError(t, err)
	require.NoError(t, store.InsertChunks(context.Background(), doc.ID, []document.Chunk{
		{ID: "c-1", DocumentID: doc.ID, ChunkIndex: 0, Content: "legacy content", Embedding: vectors[0]},
	}))
	require.NoError(t, store.MarkCompleted(context.Background(), doc.ID, 1))

	r := NewRetriever(store, embedder, 5, testLogger())
	matches, err := r.Retrieve(context.Background(), "legacy content")
	require.NoError(t, err)
	assert.Empty(t, matches, "vectors from another embedding model must never be compared")
}

func TestQueryEmptyStoreReturnsFixedSummary(t *testing.T) {
	store := NewMemoryStore()
	p, _, _, _ := newTestProcessor(store)

	result, err := p.Query(context.Background(), "what is in my documents?")
	require.NoError(t, err)
	assert.Zero(t, result.ResultsCount)
	assert.Empty(t, result.Chunks)
	assert.Equal(t, NoRelevantInformation, result.Summary)
}

func TestQuerySummarizerFailureIsAnError(t *testing.T) {
	store := NewMemoryStore()
	p, _, summarizer, _ := newTestProcessor(store)

	_, err := p.IngestUpload(context.Background(), "facts.txt", int64(len(sampleText)), []byte(sampleText))
	require.NoError(t, err)

	summarizer.Err = fmt.Errorf("model timeout")
	_, err = p.Query(context.Background(), "mitochondria")
	require.Error(t, err, "a summarizer failure must surface, not masquerade as an empty answer")
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	store := NewMemoryStore()
	p, _, _, _ := newTestProcessor(store)

	_, err := p.Query(context.Background(), "   ")
	require.Error(t, err)
}
