package rag_service

import (
	"strings"
	"testing"
)

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(100, 10, 0)

	for _, input := range []string{"", "   ", "\n\n\t"} {
		if chunks := c.Split(input); len(chunks) != 0 {
			t.Errorf("expected zero chunks for %q, got %d", input, len(chunks))
		}
	}
}

func TestChunkerReconstruction(t *testing.T) {
	inputs := []string{
		"A single short sentence.",
		"First sentence here. Second sentence here. Third sentence here. Fourth one closes it.",
		"One line\nAnother line\nA third line without terminal punctuation",
		strings.Repeat("No punctuation at all in this very long run of words ", 20),
	}

	for _, overlap := range []int{0, 10} {
		c := NewChunker(60, overlap, 0)
		for _, input := range inputs {
			segments := c.segments(input)
			if got := strings.Join(segments, ""); got != input {
				t.Errorf("segments do not reconstruct input:\nwant %q\ngot  %q", input, got)
			}
		}
	}
}

func TestChunkerRespectsMaxSize(t *testing.T) {
	c := NewChunker(60, 10, 0)
	text := "First sentence here. Second sentence here. Third sentence here. Fourth one closes it."

	for i, seg := range c.segments(text) {
		if n := len([]rune(seg)); n > 60 {
			t.Errorf("segment %d has %d runes, exceeds max size", i, n)
		}
	}
	// A chunk may exceed the max only by the overlap prefix.
	for i, chunk := range c.Split(text) {
		if n := len([]rune(chunk)); n > 60+10 {
			t.Errorf("chunk %d has %d runes, exceeds max size plus overlap", i, n)
		}
	}
}

func TestChunkerOverlapExample(t *testing.T) {
	// Three sentences, 50-character limit, 10-character overlap: the first
	// two sentences fit one chunk, the third starts the next, prefixed with
	// the previous chunk's tail.
	c := NewChunker(50, 10, 0)
	text := "Alpha facts live here. Beta facts follow now. Gamma ends the story."

	chunks := c.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}

	runes := []rune(chunks[0])
	wantOverlap := string(runes[len(runes)-10:])
	if !strings.HasPrefix(chunks[1], wantOverlap) {
		t.Errorf("chunk 1 should start with the last 10 runes of chunk 0 (%q), got %q", wantOverlap, chunks[1])
	}
	if !strings.HasSuffix(chunks[1], "Gamma ends the story.") {
		t.Errorf("chunk 1 should end with the third sentence, got %q", chunks[1])
	}
}

func TestChunkerMergesTrailingFragment(t *testing.T) {
	c := NewChunker(60, 0, 30)
	// The trailing "Tiny end." fragment is below the 30-rune minimum and
	// must be merged into the previous chunk.
	text := "A reasonably long opening sentence sits here first. Tiny end."

	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk after trailing merge, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != text {
		t.Errorf("merged chunk should contain the whole text, got %q", chunks[0])
	}
}

func TestChunkerHardCutsOversizedSentence(t *testing.T) {
	c := NewChunker(20, 0, 0)
	text := strings.Repeat("x", 65) // no sentence boundary anywhere

	segments := c.segments(text)
	if got := strings.Join(segments, ""); got != text {
		t.Fatalf("hard-cut segments do not reconstruct input")
	}
	for i, seg := range segments {
		if len([]rune(seg)) > 20 {
			t.Errorf("segment %d exceeds max size after hard cut", i)
		}
	}
	if len(segments) != 4 {
		t.Errorf("expected 4 segments (20+20+20+5), got %d", len(segments))
	}
}

func TestChunkerUnicodeSafety(t *testing.T) {
	c := NewChunker(10, 3, 0)
	text := "héllo wörld. çafé tîme. ñice dây."

	if got := strings.Join(c.segments(text), ""); got != text {
		t.Errorf("unicode text not reconstructed: %q", got)
	}
}
