package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/serisow/docquery/services/rag_service"
)

type QueryRequest struct {
	Query string `json:"query"`
}

// QueryHandler answers a natural-language question from the completed
// documents. Zero matches is a successful response with the fixed
// no-information summary; a downstream model failure is an error status,
// never an empty summary.
type QueryHandler struct {
	processor *rag_service.Processor
	logger    *slog.Logger
}

func NewQueryHandler(processor *rag_service.Processor, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		processor: processor,
		logger:    logger,
	}
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "Query cannot be empty", http.StatusBadRequest)
		return
	}

	result, err := h.processor.Query(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("Query failed",
			slog.String("query", req.Query),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to answer query", http.StatusBadGateway)
		return
	}

	writeJSON(w, result, http.StatusOK)
}
