package rag_service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestEmbeddingService(url string, dimension int) *OpenAIEmbeddingService {
	s := NewOpenAIEmbeddingService("test-key", "text-embedding-ada-002", dimension, 5*time.Second, testLogger())
	s.retryDelay = time.Millisecond
	return s.WithAPIURL(url)
}

func TestEmbedBatchAssignsVectorsByIndex(t *testing.T) {
	// The server answers out of order; vectors must still land on the
	// right input position.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 2)
	vectors, err := s.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("vectors assigned to wrong inputs: %v", vectors)
	}
}

func TestEmbedBatchRejectsDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{1, 2, 3}},
			},
		})
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 2)
	_, err := s.EmbedBatch(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedBatchRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 2)
	_, err := s.EmbedBatch(context.Background(), []string{"one", "two"})
	if err == nil {
		t.Fatal("expected count mismatch error: a partially embedded batch must fail as a whole")
	}
}

func TestEmbedBatchRetriesThenFails(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 2)
	_, err := s.EmbedBatch(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestEmbedBatchEmptyInputSkipsCall(t *testing.T) {
	s := newTestEmbeddingService("http://127.0.0.1:0", 2)
	vectors, err := s.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected no vectors, got %v", vectors)
	}
}
