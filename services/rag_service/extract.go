package rag_service

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// DocumentExtractor turns raw uploaded file bytes into a normalized text
// string. Each format sits behind the same interface so the ingest pipeline
// does not care which parser produced the text.
type DocumentExtractor struct {
	logger *slog.Logger
}

func NewDocumentExtractor(logger *slog.Logger) *DocumentExtractor {
	return &DocumentExtractor{
		logger: logger,
	}
}

// Extract dispatches on the file extension. Unsupported extensions return
// ErrUnsupportedFileType so callers can reject the upload before creating
// any document record.
func (e *DocumentExtractor) Extract(ext string, data []byte) (string, error) {
	var text string
	var err error

	switch strings.ToLower(ext) {
	case ".pdf":
		text, err = e.ExtractTextFromPDF(data)
	case ".doc", ".docx":
		text, err = e.ExtractTextFromWord(data)
	case ".html", ".htm":
		text, err = e.ExtractTextFromHTML(data)
	case ".txt", ".text", ".md":
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	if err != nil {
		return "", err
	}

	return NormalizeText(text), nil
}

func (e *DocumentExtractor) ExtractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Error("Failed to create PDF reader",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return "", fmt.Errorf("failed to create PDF reader: %v", err)
	}

	totalPage := reader.NumPage()
	e.logger.Debug("Starting PDF text extraction",
		slog.Int("total_pages", totalPage))

	var fullText strings.Builder
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			e.logger.Warn("Null page encountered",
				slog.Int("page_number", pageIndex))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Error("Failed to extract text from page",
				slog.Int("page_number", pageIndex),
				slog.String("error", err.Error()))
			return "", fmt.Errorf("failed to extract text from page %d: %v", pageIndex, err)
		}

		fullText.WriteString(text)
	}

	if fullText.Len() == 0 {
		e.logger.Error("No text extracted from PDF",
			slog.Int("total_pages", totalPage))
		return "", fmt.Errorf("no text content extracted from PDF")
	}

	e.logger.Info("Successfully extracted text from PDF",
		slog.Int("total_pages", totalPage),
		slog.Int("total_text_length", fullText.Len()))

	return fullText.String(), nil
}

func (e *DocumentExtractor) ExtractTextFromWord(data []byte) (string, error) {
	e.logger.Debug("Starting Word document text extraction",
		slog.Int("data_size", len(data)))

	mimeType := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	result, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		e.logger.Error("Failed to convert Word document",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return "", fmt.Errorf("failed to convert Word document: %v", err)
	}

	if len(result.Body) == 0 {
		e.logger.Error("No text extracted from Word document")
		return "", fmt.Errorf("no text content extracted from Word document")
	}

	return result.Body, nil
}

func (e *DocumentExtractor) ExtractTextFromHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		e.logger.Error("Failed to parse HTML document",
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to parse HTML document: %v", err)
	}

	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		// Fragment without a body element
		text = doc.Text()
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content extracted from HTML document")
	}

	return text, nil
}

// NormalizeText canonicalizes line endings, strips NUL bytes left by some
// parsers and trims surrounding whitespace.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}
