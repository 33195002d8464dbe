package chunk

import (
	"strings"
	"testing"
	"unicode"
)

func nonWhitespace(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestChunkDocument_EmptyInput(t *testing.T) {
	if got := ChunkDocument("", "", Config{}); got != nil {
		t.Fatalf("expected nil chunks for empty input, got %v", got)
	}
	if got := ChunkDocument("   \n\t ", "", Config{}); got != nil {
		t.Fatalf("expected nil chunks for whitespace-only input, got %v", got)
	}
}

func TestChunkDocument_ShortInputSingleChunk(t *testing.T) {
	text := "A short paragraph that easily fits in one chunk."
	chunks := ChunkDocument(text, "Doc", Config{MaxChunkSize: 1000, Overlap: 200})
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("expected chunk text to equal input verbatim, got %q", chunks[0].Text)
	}
	if chunks[0].Position != 0 {
		t.Fatalf("expected position 0, got %d", chunks[0].Position)
	}
}

func TestChunkDocument_Coverage(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("This is sentence number ")
		b.WriteString(strings.Repeat("x", i%7+1))
		b.WriteString(". Another sentence follows here for good measure. ")
	}
	text := b.String()

	chunks := ChunkDocument(text, "Doc", Config{MaxChunkSize: 200, Overlap: 40})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var concatenated strings.Builder
	for _, c := range chunks {
		concatenated.WriteString(c.Text)
	}

	wantNW := nonWhitespace(text)
	gotNW := nonWhitespace(concatenated.String())
	if !strings.Contains(gotNW, wantNW) && gotNW != wantNW {
		// Windowed overlap may duplicate characters, so require every
		// non-whitespace rune of the input to appear in order within the
		// concatenation, not an exact match.
		if !containsSubsequenceSegments(gotNW, wantNW) {
			t.Fatalf("concatenated chunks do not cover all non-whitespace input characters")
		}
	}
}

// containsSubsequenceSegments is a coarse check: every rune of want appears
// in got in the same relative order (duplicates from overlap allowed).
func containsSubsequenceSegments(got, want string) bool {
	gi := 0
	gr := []rune(got)
	for _, wr := range want {
		found := false
		for gi < len(gr) {
			if gr[gi] == wr {
				found = true
				gi++
				break
			}
			gi++
		}
		if !found {
			return false
		}
	}
	return true
}

func TestChunkDocument_MarkdownSectionsCoverage(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 40; i++ {
		body.WriteString("Paragraph sentence number ")
		body.WriteString(strings.Repeat("y", i%5+1))
		body.WriteString(". Another one follows right after it. ")
	}
	text := "# Introduction\n" + body.String() + "\n\n## Details\n" + body.String()

	chunks := ChunkDocument(text, "", Config{MaxChunkSize: 150, Overlap: 30})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var concatenated strings.Builder
	for _, c := range chunks {
		concatenated.WriteString(c.Text)
	}

	wantNW := nonWhitespace(text)
	gotNW := nonWhitespace(concatenated.String())
	if !strings.Contains(gotNW, wantNW) && gotNW != wantNW && !containsSubsequenceSegments(gotNW, wantNW) {
		t.Fatalf("concatenated chunks do not cover header text alongside body text")
	}
	if !strings.Contains(gotNW, nonWhitespace("Introduction")) {
		t.Fatalf("expected header text %q to survive chunking, got chunks=%+v", "Introduction", chunks)
	}
	if !strings.Contains(gotNW, nonWhitespace("Details")) {
		t.Fatalf("expected header text %q to survive chunking, got chunks=%+v", "Details", chunks)
	}
}

func TestChunkDocument_MarkdownSections(t *testing.T) {
	text := "# Intro\nFirst paragraph.\n\n## Details\nSecond paragraph with more words in it to pad length out somewhat."
	chunks := ChunkDocument(text, "", Config{MaxChunkSize: 30, Overlap: 5})
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks across sections, got %d", len(chunks))
	}
	sawIntro, sawDetails := false, false
	for _, c := range chunks {
		if c.Section == "Intro" {
			sawIntro = true
		}
		if c.Section == "Details" {
			sawDetails = true
		}
	}
	if !sawIntro || !sawDetails {
		t.Fatalf("expected chunks tagged with both section headers, got chunks=%+v", chunks)
	}
}

func TestChunkDocument_SequentialPositions(t *testing.T) {
	text := strings.Repeat("word ", 500)
	chunks := ChunkDocument(text, "Doc", Config{MaxChunkSize: 100, Overlap: 20})
	for i, c := range chunks {
		if c.Position != i {
			t.Fatalf("expected sequential positions, chunk %d has position %d", i, c.Position)
		}
	}
}

func TestConfig_OverlapClamp(t *testing.T) {
	cfg := Config{MaxChunkSize: 100, Overlap: 90}.withDefaults()
	if cfg.Overlap != 50 {
		t.Fatalf("expected overlap clamped to MaxChunkSize/2=50, got %d", cfg.Overlap)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.MaxChunkSize != 1000 || cfg.Overlap != 200 {
		t.Fatalf("expected default 1000/200, got %d/%d", cfg.MaxChunkSize, cfg.Overlap)
	}
}
