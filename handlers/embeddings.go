package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/serisow/docquery/services/rag_service"
)

type EmbeddingsRequest struct {
	Chunks []rag_service.ChunkInput `json:"chunks"`
}

type EmbeddingsResponse struct {
	Vectors [][]float32 `json:"vectors"`
	Count   int         `json:"count"`
}

// EmbeddingsHandler embeds a caller-supplied chunk batch. The batch
// succeeds or fails as a whole.
type EmbeddingsHandler struct {
	processor *rag_service.Processor
	logger    *slog.Logger
}

func NewEmbeddingsHandler(processor *rag_service.Processor, logger *slog.Logger) *EmbeddingsHandler {
	return &EmbeddingsHandler{
		processor: processor,
		logger:    logger,
	}
}

func (h *EmbeddingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Chunks) == 0 {
		writeJSONError(w, "Embedding batch is empty", http.StatusBadRequest)
		return
	}

	vectors, err := h.processor.EmbedChunks(r.Context(), req.Chunks)
	if err != nil {
		if errors.Is(err, rag_service.ErrMalformedBatch) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Batch embedding failed",
			slog.Int("batch_size", len(req.Chunks)),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to generate embeddings", http.StatusBadGateway)
		return
	}

	writeJSON(w, EmbeddingsResponse{Vectors: vectors, Count: len(vectors)}, http.StatusOK)
}
