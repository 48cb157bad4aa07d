package rag_service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/serisow/docquery/document"
)

// MemoryStore is an in-memory Store used in tests and local development.
// NearestChunks computes exact cosine similarity with the same ranking and
// tie-break rules as the Postgres implementation.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]*document.Document
	chunks map[string][]document.Chunk

	// InsertChunksFailAfter makes InsertChunks fail once the batch grows
	// past the given size, simulating a mid-batch storage error. The whole
	// insert is rejected; nothing becomes visible.
	InsertChunksFailAfter int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]*document.Document),
		chunks: make(map[string][]document.Chunk),
	}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]document.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, *d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.After(docs[j].UploadedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

func (s *MemoryStore) MarkProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if doc.Status == document.StatusProcessing {
		return ErrAlreadyProcessing
	}
	if !doc.Status.CanTransition(document.StatusProcessing) {
		return ErrInvalidTransition
	}
	doc.Status = document.StatusProcessing
	now := time.Now().UTC()
	doc.ProcessedAt = &now
	return nil
}

func (s *MemoryStore) MarkCompleted(ctx context.Context, id string, totalChunks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if !doc.Status.CanTransition(document.StatusCompleted) {
		return ErrInvalidTransition
	}
	doc.Status = document.StatusCompleted
	doc.TotalChunks = totalChunks
	doc.ErrorMessage = ""
	now := time.Now().UTC()
	doc.ProcessedAt = &now
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if !doc.Status.CanTransition(document.StatusFailed) {
		return ErrInvalidTransition
	}
	doc.Status = document.StatusFailed
	doc.ErrorMessage = errMsg
	now := time.Now().UTC()
	doc.ProcessedAt = &now
	return nil
}

func (s *MemoryStore) FailStuckProcessing(ctx context.Context, lease time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-lease)
	failed := 0
	for _, doc := range s.docs {
		if doc.Status == document.StatusProcessing && doc.ProcessedAt != nil && doc.ProcessedAt.Before(cutoff) {
			doc.Status = document.StatusFailed
			doc.ErrorMessage = "processing timed out"
			failed++
		}
	}
	return failed, nil
}

func (s *MemoryStore) InsertChunks(ctx context.Context, documentID string, chunks []document.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[documentID]; !ok {
		return ErrNotFound
	}
	if s.InsertChunksFailAfter > 0 && len(chunks) > s.InsertChunksFailAfter {
		return fmt.Errorf("simulated storage failure at chunk %d", s.InsertChunksFailAfter)
	}
	if existing := s.chunks[documentID]; len(existing) > 0 {
		return fmt.Errorf("chunks already inserted for document %s", documentID)
	}
	cp := make([]document.Chunk, len(chunks))
	copy(cp, chunks)
	s.chunks[documentID] = cp
	return nil
}

func (s *MemoryStore) ListChunks(ctx context.Context, documentID string) ([]document.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := s.chunks[documentID]
	cp := make([]document.Chunk, len(chunks))
	copy(cp, chunks)
	sort.Slice(cp, func(i, j int) bool { return cp[i].ChunkIndex < cp[j].ChunkIndex })
	return cp, nil
}

func (s *MemoryStore) NearestChunks(ctx context.Context, vector []float32, model string, k int) ([]document.ChunkMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []document.ChunkMatch
	uploadedAt := make(map[string]time.Time)
	for id, doc := range s.docs {
		if doc.Status != document.StatusCompleted || doc.EmbeddingModel != model {
			continue
		}
		uploadedAt[id] = doc.UploadedAt
		for _, c := range s.chunks[id] {
			matches = append(matches, document.ChunkMatch{
				Chunk:         c,
				Similarity:    cosineSimilarity(vector, c.Embedding),
				DocumentTitle: doc.Title,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		ti, tj := uploadedAt[matches[i].DocumentID], uploadedAt[matches[j].DocumentID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MockEmbedder produces deterministic bag-of-words vectors: each word is
// hashed into a bucket, so texts sharing words get similar vectors. Good
// enough to exercise ranking without a live model.
type MockEmbedder struct {
	Dim       int
	ModelName string
	Err       error
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: 16, ModelName: "mock-embedding-001"}
}

func (m *MockEmbedder) Model() string { return m.ModelName }

func (m *MockEmbedder) Dimension() int { return m.Dim }

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.Dim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?;:\"'()")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[int(h.Sum32())%m.Dim]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// MockSummarizer echoes the match count, or the fixed no-results answer.
type MockSummarizer struct {
	Err error
}

func (m *MockSummarizer) Summarize(ctx context.Context, query string, matches []document.ChunkMatch) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if len(matches) == 0 {
		return NoRelevantInformation, nil
	}
	return fmt.Sprintf("Answer to %q based on %d excerpts.", query, len(matches)), nil
}
