package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/serisow/docquery/config"
	"github.com/serisow/docquery/db"
	"github.com/serisow/docquery/logging"
	"github.com/serisow/docquery/notify"
	"github.com/serisow/docquery/scheduler"
	"github.com/serisow/docquery/server"
	"github.com/serisow/docquery/services/rag_service"
	"github.com/serisow/docquery/storage"
)

func main() {
	cfg := config.Load()

	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(context.Background(), pool, cfg.EmbeddingDimension); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	store := storage.NewPostgresStore(pool, logger)
	indexManager := storage.NewIndexManager(pool, logger)
	broker := notify.NewBroker()

	extractor := rag_service.NewDocumentExtractor(logger)
	chunker := rag_service.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkMinSize)
	embedder := rag_service.NewOpenAIEmbeddingService(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.ExternalCallTimeout, logger)
	summarizer := rag_service.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.SummaryModel, cfg.ExternalCallTimeout, logger)
	retriever := rag_service.NewRetriever(store, embedder, cfg.QueryTopK, logger)
	processor := rag_service.NewProcessor(store, extractor, chunker, embedder, summarizer, retriever, broker, logger)

	// Keep the vector index in shape and reap documents stuck in processing.
	s := scheduler.New(store, indexManager, cfg.ProcessingLease, cfg.MaintenanceInterval, logger)
	go s.Start()

	r := server.SetupRoutes(processor, store, broker, logger)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, server.Config{
			Domains:      cfg.Domains,
			CertCacheDir: cfg.CertCacheDir,
			HTTPSPort:    cfg.HTTPSPort,
		})
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		server.ServeDevelopment(srv)
	}
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}

func initLogger() (*slog.Logger, error) {
	logDir := filepath.Join("logs", "docquery")

	fileHandler, err := logging.NewDailyFileHandler(logDir, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		return nil, err
	}

	return slog.New(fileHandler), nil
}
