package rag_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Embedder maps texts to fixed-dimension vectors. A batch either succeeds
// as a whole or fails as a whole; callers must never end up with some texts
// embedded and others silently missing.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIEmbeddingService calls the OpenAI embeddings endpoint directly over
// HTTP. Transient failures are retried a bounded number of times before the
// whole batch is reported failed.
type OpenAIEmbeddingService struct {
	apiURL     string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewOpenAIEmbeddingService(apiKey, model string, dimension int, timeout time.Duration, logger *slog.Logger) *OpenAIEmbeddingService {
	return &OpenAIEmbeddingService{
		apiURL:     "https://api.openai.com/v1/embeddings",
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
		retryDelay: 5 * time.Second,
		logger:     logger,
	}
}

// WithAPIURL overrides the endpoint, used by tests.
func (s *OpenAIEmbeddingService) WithAPIURL(url string) *OpenAIEmbeddingService {
	s.apiURL = url
	return s
}

func (s *OpenAIEmbeddingService) Model() string { return s.model }

func (s *OpenAIEmbeddingService) Dimension() int { return s.dimension }

func (s *OpenAIEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	maxRetries := 3
	retryDelay := s.retryDelay

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		vectors, err := s.callEmbeddings(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		s.logger.Warn("Embedding attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_delay", retryDelay),
			slog.Int("batch_size", len(texts)),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	s.logger.Error("Error calling embeddings API after multiple attempts",
		slog.Int("attempts", maxRetries),
		slog.String("model", s.model),
		slog.String("error", lastErr.Error()))
	return nil, fmt.Errorf("failed to embed batch after %d attempts: %w", maxRetries, lastErr)
}

func (s *OpenAIEmbeddingService) callEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	requestBody, err := json.Marshal(embeddingRequest{
		Input: texts,
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %v", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(embeddingResp.Data))
	}

	// The API documents input order but indexes each vector explicitly;
	// trust the index so vectors land on the right chunk.
	sort.Slice(embeddingResp.Data, func(i, j int) bool {
		return embeddingResp.Data[i].Index < embeddingResp.Data[j].Index
	})

	vectors := make([][]float32, len(texts))
	for i, d := range embeddingResp.Data {
		if len(d.Embedding) != s.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(d.Embedding))
		}
		vectors[i] = d.Embedding
	}

	return vectors, nil
}
