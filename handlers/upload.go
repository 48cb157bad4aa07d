package handlers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/serisow/docquery/services/rag_service"
)

// UploadHandler accepts a multipart file upload and runs the full ingestion
// workflow. Input errors (unsupported type, empty file) are rejected before
// any document record is created.
type UploadHandler struct {
	processor *rag_service.Processor
	logger    *slog.Logger
}

func NewUploadHandler(processor *rag_service.Processor, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		processor: processor,
		logger:    logger,
	}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received file upload request")

	err := r.ParseMultipartForm(10 << 20) // 10 MB limit
	if err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("Starting document ingestion",
		slog.String("filename", header.Filename),
		slog.String("content_type", header.Header.Get("Content-Type")),
		slog.Int64("size", header.Size))

	doc, err := h.processor.IngestUpload(r.Context(), header.Filename, header.Size, buf.Bytes())
	if err != nil {
		switch {
		case errors.Is(err, rag_service.ErrUnsupportedFileType):
			writeJSONError(w, "Unsupported file type", http.StatusBadRequest)
		case errors.Is(err, rag_service.ErrEmptyDocument) && doc == nil:
			writeJSONError(w, "File is empty", http.StatusBadRequest)
		default:
			h.logger.Error("Document ingestion failed",
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()))
			// The document record, if one was created, carries the failed
			// status and error message for the list view.
			if doc != nil {
				writeJSON(w, doc, http.StatusInternalServerError)
			} else {
				writeJSONError(w, "Failed to process document", http.StatusInternalServerError)
			}
		}
		return
	}

	writeJSON(w, doc, http.StatusOK)
}
