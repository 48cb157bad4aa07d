package rag_service

import (
	"context"
	"time"

	"github.com/serisow/docquery/document"
)

// Store is the persistence boundary the pipeline depends on. The Postgres
// implementation lives in the storage package; tests use the in-memory one
// from rag_service_mock.go.
type Store interface {
	CreateDocument(ctx context.Context, doc *document.Document) error
	GetDocument(ctx context.Context, id string) (*document.Document, error)
	ListDocuments(ctx context.Context) ([]document.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// MarkProcessing moves a document from pending to processing. It is the
	// fencing point: a document already processing (or finished) is refused,
	// so two ingestion workflows can never chunk the same document twice.
	MarkProcessing(ctx context.Context, id string) error
	// MarkCompleted moves processing to completed and records the final
	// chunk count and processing time.
	MarkCompleted(ctx context.Context, id string, totalChunks int) error
	// MarkFailed moves processing to failed and records the error message.
	MarkFailed(ctx context.Context, id string, errMsg string) error
	// FailStuckProcessing fails every document that entered processing
	// longer than lease ago. Crash recovery: nothing may sit in processing
	// forever.
	FailStuckProcessing(ctx context.Context, lease time.Duration) (int, error)

	// InsertChunks writes all chunks for a document atomically. A partial
	// chunk set must never become visible to retrieval.
	InsertChunks(ctx context.Context, documentID string, chunks []document.Chunk) error
	ListChunks(ctx context.Context, documentID string) ([]document.Chunk, error)

	// NearestChunks returns up to k chunks from completed documents embedded
	// with the given model, ranked by cosine similarity to vector. Ties
	// break on (document uploaded_at, chunk_index) so results are
	// deterministic.
	NearestChunks(ctx context.Context, vector []float32, model string, k int) ([]document.ChunkMatch, error)
}

// Notifier publishes document status changes to whoever is watching the
// document list.
type Notifier interface {
	PublishStatus(event document.StatusEvent)
}
