package rag_service

import (
	"strings"
	"unicode"
)

// Chunker splits normalized text into bounded, ordered chunks.
//
// Policy: sentence boundaries are preferred over hard cuts, consecutive
// chunks share a character overlap (the tail of the previous chunk is
// prepended to the next one, so boundary-spanning facts stay retrievable),
// and a trailing fragment smaller than minSize is merged into the previous
// chunk. The underlying segments partition the input exactly, so no content
// is ever lost; only the overlap prefix is duplicated.
type Chunker struct {
	maxSize int
	overlap int
	minSize int
}

func NewChunker(maxSize, overlap, minSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}
	if minSize < 0 {
		minSize = 0
	}
	return &Chunker{
		maxSize: maxSize,
		overlap: overlap,
		minSize: minSize,
	}
}

// Split returns the chunk contents in input order. Empty input yields zero
// chunks. A chunk after the first may exceed maxSize by at most the overlap
// length.
func (c *Chunker) Split(text string) []string {
	segments := c.segments(text)
	if len(segments) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(segments))
	var consumed []rune
	for i, seg := range segments {
		if i == 0 {
			chunks = append(chunks, seg)
		} else {
			tail := overlapTail(consumed, c.overlap)
			chunks = append(chunks, tail+seg)
		}
		consumed = append(consumed, []rune(seg)...)
	}

	return chunks
}

// segments partitions text into ordered pieces of at most maxSize runes,
// cutting at sentence boundaries where possible. Concatenating the segments
// reproduces the input exactly.
func (c *Chunker) segments(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitSentences(text)

	// Hard-cut any single sentence that exceeds the chunk size.
	var pieces []string
	for _, s := range sentences {
		runes := []rune(s)
		for len(runes) > c.maxSize {
			pieces = append(pieces, string(runes[:c.maxSize]))
			runes = runes[c.maxSize:]
		}
		if len(runes) > 0 {
			pieces = append(pieces, string(runes))
		}
	}

	var segments []string
	var current strings.Builder
	currentLen := 0
	for _, p := range pieces {
		pLen := len([]rune(p))
		if currentLen > 0 && currentLen+pLen > c.maxSize {
			segments = append(segments, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(p)
		currentLen += pLen
	}
	if currentLen > 0 {
		segments = append(segments, current.String())
	}

	// Merge a trivial trailing fragment into the previous segment.
	if len(segments) > 1 {
		last := segments[len(segments)-1]
		if len([]rune(strings.TrimSpace(last))) < c.minSize {
			segments[len(segments)-2] += last
			segments = segments[:len(segments)-1]
		}
	}

	return segments
}

// splitSentences cuts text after terminal punctuation followed by
// whitespace, keeping every rune so the parts concatenate back to the
// original text.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		// Swallow the run of whitespace that follows the boundary.
		end := i + 1
		for end < len(runes) && unicode.IsSpace(runes[end]) && runes[end] != '\n' {
			end++
		}
		sentences = append(sentences, string(runes[start:end]))
		start = end
		i = end - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func overlapTail(consumed []rune, overlap int) string {
	if overlap <= 0 || len(consumed) == 0 {
		return ""
	}
	if len(consumed) <= overlap {
		return string(consumed)
	}
	return string(consumed[len(consumed)-overlap:])
}
