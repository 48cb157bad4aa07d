package rag_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/serisow/docquery/document"
)

// NoRelevantInformation is the fixed answer returned when retrieval finds
// nothing. It is a successful empty result, distinct from a summarization
// failure.
const NoRelevantInformation = "No relevant information found in the uploaded documents."

// Summarizer produces a natural-language answer grounded in the matched
// chunks. An empty match list must yield NoRelevantInformation without a
// model call.
type Summarizer interface {
	Summarize(ctx context.Context, query string, matches []document.ChunkMatch) (string, error)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAISummarizer synthesizes an answer with a chat model, instructed to
// use only the supplied context.
type OpenAISummarizer struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewOpenAISummarizer(apiKey, model string, timeout time.Duration, logger *slog.Logger) *OpenAISummarizer {
	return &OpenAISummarizer{
		apiURL:     "https://api.openai.com/v1/chat/completions",
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		retryDelay: 5 * time.Second,
		logger:     logger,
	}
}

// WithAPIURL overrides the endpoint, used by tests.
func (s *OpenAISummarizer) WithAPIURL(url string) *OpenAISummarizer {
	s.apiURL = url
	return s
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, query string, matches []document.ChunkMatch) (string, error) {
	if len(matches) == 0 {
		return NoRelevantInformation, nil
	}

	prompt := buildSummaryPrompt(query, matches)

	maxRetries := 3
	retryDelay := s.retryDelay

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		answer, err := s.callChat(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		s.logger.Warn("Summarization attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_delay", retryDelay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	s.logger.Error("Error calling chat API after multiple attempts",
		slog.Int("attempts", maxRetries),
		slog.String("model", s.model),
		slog.String("error", lastErr.Error()))
	return "", fmt.Errorf("failed to summarize after %d attempts: %w", maxRetries, lastErr)
}

func (s *OpenAISummarizer) callChat(ctx context.Context, prompt string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	requestBody, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You answer questions using only the provided document excerpts. If the excerpts do not contain the answer, say so. Never invent information."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}

	answer := strings.TrimSpace(result.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("empty answer in chat response")
	}

	return answer, nil
}

func buildSummaryPrompt(query string, matches []document.ChunkMatch) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nDocument excerpts:\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "\n[%d] (from %q)\n%s\n", i+1, m.DocumentTitle, m.Content)
	}
	b.WriteString("\nAnswer the question using only the excerpts above.")
	return b.String()
}
