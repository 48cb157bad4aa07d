package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/serisow/docquery/document"
)

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".html": "text/html",
	".htm":  "text/html",
	".txt":  "text/plain",
	".text": "text/plain",
	".md":   "text/markdown",
}

// Processor orchestrates the two workflows of the system: ingestion
// (extract -> chunk -> embed -> store) and query (embed -> retrieve ->
// summarize). Per-document status is the single source of truth for
// ingestion progress; queries persist nothing.
type Processor struct {
	store      Store
	extractor  *DocumentExtractor
	chunker    *Chunker
	embedder   Embedder
	summarizer Summarizer
	retriever  *Retriever
	notifier   Notifier
	logger     *slog.Logger
}

func NewProcessor(store Store, extractor *DocumentExtractor, chunker *Chunker, embedder Embedder, summarizer Summarizer, retriever *Retriever, notifier Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		store:      store,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		summarizer: summarizer,
		retriever:  retriever,
		notifier:   notifier,
		logger:     logger,
	}
}

// SupportedFileType reports whether the extension can be extracted.
func SupportedFileType(ext string) bool {
	_, ok := mimeTypes[strings.ToLower(ext)]
	return ok
}

func MimeType(ext string) string {
	if mime, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IngestUpload runs the full ingestion workflow for one uploaded file.
// Input errors (unsupported type, empty file) are rejected before any
// document record exists. Later failures leave the document in failed with
// the error message recorded, never stuck in processing.
func (p *Processor) IngestUpload(ctx context.Context, filename string, size int64, data []byte) (*document.Document, error) {
	ext := filepath.Ext(filename)
	if !SupportedFileType(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	doc := &document.Document{
		ID:             uuid.NewString(),
		Title:          filename,
		FilePath:       "/uploads/" + filename,
		FileType:       MimeType(ext),
		FileSize:       size,
		Status:         document.StatusPending,
		EmbeddingModel: p.embedder.Model(),
		UploadedAt:     time.Now().UTC(),
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	p.publish(doc.ID, document.StatusPending, 0, "")

	if err := p.store.MarkProcessing(ctx, doc.ID); err != nil {
		return doc, err
	}
	doc.Status = document.StatusProcessing
	p.publish(doc.ID, document.StatusProcessing, 0, "")

	extractStart := time.Now()
	text, err := p.extractor.Extract(ext, data)
	if err != nil {
		p.logger.Error("Text extraction failed",
			slog.String("document_id", doc.ID),
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		p.fail(ctx, doc, "text extraction failed: "+err.Error())
		return doc, err
	}

	p.logger.Debug("Text extracted",
		slog.String("document_id", doc.ID),
		slog.Int("text_length", len(text)),
		slog.Duration("extraction_time", time.Since(extractStart)))

	count, err := p.ingestText(ctx, doc, text)
	if err != nil {
		return doc, err
	}

	doc.Status = document.StatusCompleted
	doc.TotalChunks = count
	return doc, nil
}

// Process chunks, embeds and stores already-extracted text for an existing
// document. This is the POST /process operation.
func (p *Processor) Process(ctx context.Context, documentID, text string) (int, error) {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}

	if err := p.store.MarkProcessing(ctx, doc.ID); err != nil {
		return 0, err
	}
	doc.Status = document.StatusProcessing
	p.publish(doc.ID, document.StatusProcessing, 0, "")

	text = NormalizeText(text)
	if text == "" {
		p.fail(ctx, doc, "document text is empty")
		return 0, ErrEmptyDocument
	}

	return p.ingestText(ctx, doc, text)
}

// ingestText runs chunk -> embed -> store for a document already in
// processing. Any stage failure marks the document failed.
func (p *Processor) ingestText(ctx context.Context, doc *document.Document, text string) (int, error) {
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		p.fail(ctx, doc, "no chunks produced from document text")
		return 0, ErrEmptyDocument
	}

	embedStart := time.Now()
	vectors, err := p.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		p.logger.Error("Embedding generation failed",
			slog.String("document_id", doc.ID),
			slog.Int("chunk_count", len(pieces)),
			slog.String("error", err.Error()))
		p.fail(ctx, doc, "embedding generation failed: "+err.Error())
		return 0, err
	}
	if len(vectors) != len(pieces) {
		err := fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(pieces), len(vectors))
		p.fail(ctx, doc, err.Error())
		return 0, err
	}

	chunks := make([]document.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = document.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    content,
			Embedding:  vectors[i],
		}
	}

	if err := p.store.InsertChunks(ctx, doc.ID, chunks); err != nil {
		p.logger.Error("Chunk insertion failed",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()))
		p.fail(ctx, doc, "failed to store chunks: "+err.Error())
		return 0, err
	}

	if err := p.store.MarkCompleted(ctx, doc.ID, len(chunks)); err != nil {
		return 0, err
	}

	p.logger.Info("Document processed",
		slog.String("document_id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.Duration("embedding_time", time.Since(embedStart)))
	p.publish(doc.ID, document.StatusCompleted, len(chunks), "")

	return len(chunks), nil
}

// ChunkInput is one element of a POST /embeddings batch.
type ChunkInput struct {
	DocumentID string `json:"documentId"`
	ChunkIndex int    `json:"chunkIndex"`
	Content    string `json:"content"`
}

// EmbedChunks embeds a caller-supplied chunk batch and returns the vectors
// in input order. The batch fails as a whole.
func (p *Processor) EmbedChunks(ctx context.Context, inputs []ChunkInput) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrMalformedBatch)
	}
	texts := make([]string, len(inputs))
	for i, in := range inputs {
		if in.Content == "" {
			return nil, fmt.Errorf("%w: chunk %d of document %s has no content", ErrMalformedBatch, in.ChunkIndex, in.DocumentID)
		}
		texts[i] = in.Content
	}
	return p.embedder.EmbedBatch(ctx, texts)
}

// Query answers a natural-language question from the completed documents.
// Stateless per call: nothing is persisted and a downstream failure surfaces
// as an error, never as a silently empty summary.
func (p *Processor) Query(ctx context.Context, query string) (*document.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	matches, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	summary, err := p.summarizer.Summarize(ctx, query, matches)
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}

	return &document.QueryResult{
		Query:        query,
		Summary:      summary,
		Chunks:       matches,
		ResultsCount: len(matches),
	}, nil
}

func (p *Processor) fail(ctx context.Context, doc *document.Document, msg string) {
	if err := p.store.MarkFailed(ctx, doc.ID, msg); err != nil {
		p.logger.Error("Failed to mark document as failed",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()))
		return
	}
	doc.Status = document.StatusFailed
	doc.ErrorMessage = msg
	p.publish(doc.ID, document.StatusFailed, 0, msg)
}

func (p *Processor) publish(id string, status document.Status, totalChunks int, errMsg string) {
	if p.notifier == nil {
		return
	}
	p.notifier.PublishStatus(document.StatusEvent{
		DocumentID:   id,
		Status:       status,
		TotalChunks:  totalChunks,
		ErrorMessage: errMsg,
		OccurredAt:   time.Now().UTC(),
	})
}
