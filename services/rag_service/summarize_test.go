package rag_service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/serisow/docquery/document"
)

func newTestSummarizer(url string) *OpenAISummarizer {
	s := NewOpenAISummarizer("test-key", "gpt-4o-mini", 5*time.Second, testLogger())
	s.retryDelay = time.Millisecond
	return s.WithAPIURL(url)
}

func TestSummarizeEmptyMatchesSkipsModelCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	s := newTestSummarizer(server.URL)
	summary, err := s.Summarize(context.Background(), "any question", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != NoRelevantInformation {
		t.Errorf("expected the fixed no-information answer, got %q", summary)
	}
	if called {
		t.Error("no model call may happen for an empty match list")
	}
}

func TestSummarizeGroundsPromptInMatches(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		prompt = req.Messages[len(req.Messages)-1].Content
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Grounded answer."}},
			},
		})
	}))
	defer server.Close()

	matches := []document.ChunkMatch{
		{
			Chunk:         document.Chunk{Content: "The powerhouse of the cell is the mitochondria."},
			DocumentTitle: "biology.txt",
			Similarity:    0.91,
		},
	}

	s := newTestSummarizer(server.URL)
	summary, err := s.Summarize(context.Background(), "what powers the cell?", matches)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "Grounded answer." {
		t.Errorf("unexpected summary %q", summary)
	}
	if !strings.Contains(prompt, "The powerhouse of the cell") {
		t.Error("prompt must contain the chunk content")
	}
	if !strings.Contains(prompt, "biology.txt") {
		t.Error("prompt must name the source document")
	}
}

func TestSummarizeFailureSurfacesAsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model melted", http.StatusInternalServerError)
	}))
	defer server.Close()

	matches := []document.ChunkMatch{
		{Chunk: document.Chunk{Content: "some content"}, DocumentTitle: "a.txt"},
	}

	s := newTestSummarizer(server.URL)
	_, err := s.Summarize(context.Background(), "question", matches)
	if err == nil {
		t.Fatal("a model failure must surface as an error, never as an empty summary")
	}
}
