package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/serisow/docquery/document"
	"github.com/serisow/docquery/services/rag_service"
)

// PostgresStore implements rag_service.Store on pgx + pgvector. Status
// transitions are guarded in SQL (UPDATE ... WHERE status = ...), so the
// monotonic lifecycle holds even under concurrent callers, and chunk
// insertion runs in a single transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger,
	}
}

const documentColumns = `id, title, file_path, file_type, file_size, status, embedding_model, total_chunks, uploaded_at, processed_at, error_message`

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *document.Document) error {
	query := `
        INSERT INTO documents (id, title, file_path, file_type, file_size, status, embedding_model, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		doc.ID, doc.Title, doc.FilePath, doc.FileType, doc.FileSize,
		string(doc.Status), doc.EmbeddingModel, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rag_service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]document.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]document.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document; its chunks go with it via the
// ON DELETE CASCADE constraint.
func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rag_service.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE documents SET status = $2, processed_at = now()
        WHERE id = $1 AND status = $3`,
		id, string(document.StatusProcessing), string(document.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id, document.StatusProcessing)
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id string, totalChunks int) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE documents SET status = $2, total_chunks = $3, processed_at = now(), error_message = ''
        WHERE id = $1 AND status = $4`,
		id, string(document.StatusCompleted), totalChunks, string(document.StatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id, document.StatusCompleted)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE documents SET status = $2, error_message = $3, processed_at = now()
        WHERE id = $1 AND status = $4`,
		id, string(document.StatusFailed), errMsg, string(document.StatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id, document.StatusFailed)
	}
	return nil
}

func (s *PostgresStore) FailStuckProcessing(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-lease)
	tag, err := s.pool.Exec(ctx, `
        UPDATE documents SET status = $1, error_message = 'processing timed out'
        WHERE status = $2 AND processed_at < $3`,
		string(document.StatusFailed), string(document.StatusProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// InsertChunks writes the whole chunk set in one transaction. Either every
// chunk for the document lands or none does; retrieval can never observe a
// half-populated document.
func (s *PostgresStore) InsertChunks(ctx context.Context, documentID string, chunks []document.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
            INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
            VALUES ($1, $2, $3, $4, $5)`,
			c.ID, documentID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChunks(ctx context.Context, documentID string) ([]document.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, document_id, chunk_index, content
        FROM document_chunks
        WHERE document_id = $1
        ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]document.Chunk, 0)
	for rows.Next() {
		var c document.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// NearestChunks ranks chunks of completed documents by cosine similarity to
// the query vector. Only vectors from the given embedding model are
// compared; ties break on (uploaded_at, chunk_index) to keep results
// deterministic.
func (s *PostgresStore) NearestChunks(ctx context.Context, vector []float32, model string, k int) ([]document.ChunkMatch, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT c.id, c.document_id, c.chunk_index, c.content,
               1 - (c.embedding <=> $1) AS similarity,
               d.title
        FROM document_chunks c
        JOIN documents d ON d.id = c.document_id
        WHERE d.status = $2 AND d.embedding_model = $3
        ORDER BY c.embedding <=> $1, d.uploaded_at, c.chunk_index
        LIMIT $4`,
		pgvector.NewVector(vector), string(document.StatusCompleted), model, k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	matches := make([]document.ChunkMatch, 0, k)
	for rows.Next() {
		var m document.ChunkMatch
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.ChunkIndex, &m.Content, &m.Similarity, &m.DocumentTitle); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// transitionConflict inspects the current row to report why a guarded
// status update matched nothing.
func (s *PostgresStore) transitionConflict(ctx context.Context, id string, target document.Status) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return rag_service.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect document status: %w", err)
	}
	if document.Status(status) == document.StatusProcessing && target == document.StatusProcessing {
		return rag_service.ErrAlreadyProcessing
	}
	return fmt.Errorf("%w: %s -> %s", rag_service.ErrInvalidTransition, status, target)
}

func scanDocument(row pgx.Row) (*document.Document, error) {
	var doc document.Document
	var status string
	err := row.Scan(&doc.ID, &doc.Title, &doc.FilePath, &doc.FileType, &doc.FileSize,
		&status, &doc.EmbeddingModel, &doc.TotalChunks, &doc.UploadedAt, &doc.ProcessedAt, &doc.ErrorMessage)
	if err != nil {
		return nil, err
	}
	doc.Status = document.Status(status)
	return &doc, nil
}
