package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

func Connect(databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	// The vector extension must exist before RegisterTypes can resolve the
	// vector OID on pooled connections, so create it on a throwaway
	// connection first.
	maxRetries := 10
	retryDelay := time.Second * 10

	var err error
	for i := 0; i < maxRetries; i++ {
		var conn *pgx.Conn
		conn, err = pgx.Connect(context.Background(), databaseURL)
		if err == nil {
			_, err = conn.Exec(context.Background(), "CREATE EXTENSION IF NOT EXISTS vector")
			conn.Close(context.Background())
			if err == nil {
				log.Println("Successfully connected to the database")
				break
			}
		}

		log.Printf("Failed to connect to the database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database after %d attempts: %v", maxRetries, err)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping the database: %v", err)
	}

	return pool, nil
}

// EnsureSchema creates the documents and document_chunks tables. The vector
// column is fixed at the configured embedding dimension; vectors from a
// different model dimension cannot be stored.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	documentsDDL := `
        CREATE TABLE IF NOT EXISTS documents (
            id UUID PRIMARY KEY,
            title TEXT NOT NULL,
            file_path TEXT NOT NULL DEFAULT '',
            file_type TEXT NOT NULL DEFAULT '',
            file_size BIGINT NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            embedding_model TEXT NOT NULL DEFAULT '',
            total_chunks INT NOT NULL DEFAULT 0,
            uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            processed_at TIMESTAMPTZ,
            error_message TEXT NOT NULL DEFAULT ''
        )`

	chunksDDL := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS document_chunks (
            id UUID PRIMARY KEY,
            document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
            chunk_index INT NOT NULL,
            content TEXT NOT NULL,
            embedding vector(%d),
            UNIQUE (document_id, chunk_index)
        )`, dimension)

	if _, err := pool.Exec(ctx, documentsDDL); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	if _, err := pool.Exec(ctx, chunksDDL); err != nil {
		return fmt.Errorf("failed to create document_chunks table: %w", err)
	}

	return nil
}
