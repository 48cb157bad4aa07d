package document

import (
	"time"
)

// Status is the lifecycle state of an uploaded document. Transitions are
// monotonic: pending -> processing -> completed|failed. The terminal states
// never transition back; reprocessing means uploading a new document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CanTransition reports whether moving from s to next is a legal status
// transition.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is the persisted record for one uploaded file.
type Document struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	FilePath       string     `json:"file_path"`
	FileType       string     `json:"file_type"`
	FileSize       int64      `json:"file_size"`
	Status         Status     `json:"status"`
	EmbeddingModel string     `json:"embedding_model,omitempty"`
	TotalChunks    int        `json:"total_chunks"`
	UploadedAt     time.Time  `json:"uploaded_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// Chunk is one bounded segment of a document's text. Chunks for a document
// form a contiguous 0-based index sequence in original text order and are
// written once, never mutated.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// ChunkMatch is a retrieval hit: a chunk annotated with its cosine
// similarity to the query and the owning document's title.
type ChunkMatch struct {
	Chunk
	Similarity    float64 `json:"similarity"`
	DocumentTitle string  `json:"document_title"`
}

// QueryResult is the ephemeral answer to one query. It is never persisted.
type QueryResult struct {
	Query        string       `json:"query"`
	Summary      string       `json:"summary"`
	Chunks       []ChunkMatch `json:"chunks"`
	ResultsCount int          `json:"resultsCount"`
}

// StatusEvent notifies subscribers that a document changed state. Delivery
// is at-least-once for the latest state, not for every transition.
type StatusEvent struct {
	DocumentID   string    `json:"document_id"`
	Status       Status    `json:"status"`
	TotalChunks  int       `json:"total_chunks"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
