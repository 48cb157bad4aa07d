package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/docquery/document"
	"github.com/serisow/docquery/notify"
	"github.com/serisow/docquery/services/rag_service"
)

// DocumentsHandler serves the document list, single-document lookup,
// cascade delete and the status event stream backing the list view.
type DocumentsHandler struct {
	store  rag_service.Store
	broker *notify.Broker
	logger *slog.Logger
}

func NewDocumentsHandler(store rag_service.Store, broker *notify.Broker, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		store:  store,
		broker: broker,
		logger: logger,
	}
}

func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.Context())
	if err != nil {
		h.logger.Error("Failed to list documents",
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	}, http.StatusOK)
}

func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, rag_service.ErrNotFound) {
			writeJSONError(w, "Document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to load document",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load document", http.StatusInternalServerError)
		return
	}
	writeJSON(w, doc, http.StatusOK)
}

// Delete removes the document and, through the cascade constraint, all of
// its chunks.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, rag_service.ErrNotFound) {
			writeJSONError(w, "Document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete document",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events streams document status changes as server-sent events so the list
// view can refresh without polling. Delivery is latest-status, not every
// transition.
func (h *DocumentsHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	events := h.broker.Subscribe()
	defer h.broker.Unsubscribe(events)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event document.StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
