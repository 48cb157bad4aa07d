package rag_service

import "errors"

var (
	// ErrUnsupportedFileType rejects an upload before any record is written.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrEmptyDocument rejects a zero-byte upload before any record is written.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrNotFound reports a missing document or chunk.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyProcessing fences duplicate ingestion: a document may only
	// enter processing from pending, and only once.
	ErrAlreadyProcessing = errors.New("document is already processing")

	// ErrInvalidTransition reports an illegal status change, e.g. completing
	// a document that already failed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMalformedBatch reports an embedding batch with missing fields.
	ErrMalformedBatch = errors.New("malformed embedding batch")
)
