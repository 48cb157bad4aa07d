package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/serisow/docquery/services/rag_service"
)

// ProcessRequest triggers chunking, embedding and storage for text that has
// already been extracted for an existing document.
type ProcessRequest struct {
	DocumentID string `json:"documentId"`
	Text       string `json:"text"`
}

type ProcessResponse struct {
	DocumentID    string `json:"documentId"`
	ChunksCreated int    `json:"chunksCreated"`
}

type ProcessHandler struct {
	processor *rag_service.Processor
	logger    *slog.Logger
}

func NewProcessHandler(processor *rag_service.Processor, logger *slog.Logger) *ProcessHandler {
	return &ProcessHandler{
		processor: processor,
		logger:    logger,
	}
}

func (h *ProcessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" {
		writeJSONError(w, "documentId is required", http.StatusBadRequest)
		return
	}

	count, err := h.processor.Process(r.Context(), req.DocumentID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, rag_service.ErrNotFound):
			writeJSONError(w, "Document not found", http.StatusNotFound)
		case errors.Is(err, rag_service.ErrAlreadyProcessing):
			writeJSONError(w, "Document is already being processed", http.StatusConflict)
		case errors.Is(err, rag_service.ErrInvalidTransition):
			writeJSONError(w, "Document has already finished processing", http.StatusConflict)
		case errors.Is(err, rag_service.ErrEmptyDocument):
			writeJSONError(w, "Document text is empty", http.StatusBadRequest)
		default:
			h.logger.Error("Document processing failed",
				slog.String("document_id", req.DocumentID),
				slog.String("error", err.Error()))
			writeJSONError(w, "Failed to process document", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, ProcessResponse{DocumentID: req.DocumentID, ChunksCreated: count}, http.StatusOK)
}
