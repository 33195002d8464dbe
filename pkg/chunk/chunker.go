// Package chunk implements the Text Chunker (C5): structure-aware splitting
// of a document into overlapping, position-ordered chunks sized for
// embedding.
package chunk

import (
	"regexp"
	"strings"
)

// Chunk is a unit of text sized for embedding, carrying structural metadata.
type Chunk struct {
	Text     string
	Position int
	Section  string
	SourceID string
	Metadata map[string]any
}

// Config tunes chunk_document (spec §4.3, §6.4 "embeddings" section
// DefaultChunkSize/DefaultChunkOverlap).
type Config struct {
	// MaxChunkSize is the target maximum chunk length, in runes. Default: 1000.
	MaxChunkSize int
	// Overlap is the number of trailing runes repeated at the start of the
	// next window-split chunk. Clamped to at most MaxChunkSize/2. Default: 200.
	Overlap int
}

func (c Config) withDefaults() Config {
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 1000
	}
	if c.Overlap <= 0 {
		c.Overlap = 200
	}
	if c.Overlap > c.MaxChunkSize/2 {
		c.Overlap = c.MaxChunkSize / 2
	}
	return c
}

var (
	atxHeaderRe   = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)
	setextUnderRe = regexp.MustCompile(`^(=+|-+)\s*$`)
	sentenceRe    = regexp.MustCompile(`(?s)([.!?])\s+([A-Z])`)
)

type section struct {
	title string
	body  string
}

// splitSections detects Markdown ATX (`#`..`######`) and setext (`===`/`---`
// underline) headers, assigning every span of text between headers to the
// most recently seen header title, or to title/"Document" before any header
// appears.
func splitSections(text, title string) []section {
	if title == "" {
		title = "Document"
	}

	lines := strings.Split(text, "\n")
	var sections []section
	currentTitle := title
	var buf strings.Builder

	flush := func() {
		body := buf.String()
		if strings.TrimSpace(body) != "" {
			sections = append(sections, section{title: currentTitle, body: body})
		}
		buf.Reset()
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		if m := atxHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			currentTitle = m[2]
			// The header line belongs to the section it titles, not the one
			// before it — keep it verbatim, markdown markers included, so the
			// chunked output covers every non-whitespace input character.
			buf.WriteString(line)
			buf.WriteString("\n")
			i++
			continue
		}
		// Setext header: current non-blank line followed by a "===" (title)
		// or "---" (subtitle) underline line.
		if i+1 < len(lines) && strings.TrimSpace(line) != "" && setextUnderRe.MatchString(lines[i+1]) {
			flush()
			currentTitle = strings.TrimSpace(line)
			buf.WriteString(line)
			buf.WriteString("\n")
			buf.WriteString(lines[i+1])
			buf.WriteString("\n")
			i += 2
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
		i++
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, section{title: title, body: text})
	}
	return sections
}

// ChunkDocument implements the Text Chunker contract (C5): it splits text
// into an ordered sequence of overlapping chunks that respect Markdown
// structure, paragraph boundaries, sentence boundaries, and finally a hard
// character window as a last resort. Empty input yields an empty sequence;
// input no longer than cfg.MaxChunkSize yields exactly one chunk.
func ChunkDocument(text, title string, cfg Config) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg = cfg.withDefaults()

	if len([]rune(text)) <= cfg.MaxChunkSize {
		sec := title
		if sec == "" {
			sec = "Document"
		}
		return []Chunk{{Text: text, Position: 0, Section: sec}}
	}

	var out []Chunk
	position := 0
	for _, sec := range splitSections(text, title) {
		for _, piece := range chunkParagraphs(sec.body, cfg) {
			out = append(out, Chunk{
				Text:     piece,
				Position: position,
				Section:  sec.title,
			})
			position++
		}
	}
	return out
}

// chunkParagraphs implements spec §4.3 step 3: split on blank lines, pack
// paragraphs greedily up to MaxChunkSize, and fall through to sentence- then
// window-splitting for any paragraph too large to fit on its own.
func chunkParagraphs(body string, cfg Config) []string {
	paragraphs := splitParagraphs(body)
	if len(paragraphs) == 0 {
		return nil
	}

	var out []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, p := range paragraphs {
		pLen := len([]rune(p))
		if pLen > cfg.MaxChunkSize {
			flush()
			out = append(out, splitOversizedParagraph(p, cfg)...)
			continue
		}
		if currentLen > 0 && currentLen+pLen+2 > cfg.MaxChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(p)
		currentLen += pLen
	}
	flush()
	return out
}

func splitParagraphs(body string) []string {
	raw := regexp.MustCompile(`\n\s*\n`).Split(body, -1)
	var out []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitOversizedParagraph splits a single paragraph that exceeds
// MaxChunkSize, preferring sentence boundaries and falling back to a hard
// sliding window with step MaxChunkSize-Overlap when a sentence is itself
// too long.
func splitOversizedParagraph(p string, cfg Config) []string {
	sentences := splitSentences(p)
	var out []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, s := range sentences {
		sLen := len([]rune(s))
		if sLen > cfg.MaxChunkSize {
			flush()
			out = append(out, windowSplit(s, cfg)...)
			continue
		}
		if currentLen > 0 && currentLen+sLen+1 > cfg.MaxChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(s)
		currentLen += sLen
	}
	flush()
	return out
}

// splitSentences splits on whitespace following a sentence-ending
// punctuation mark that precedes an uppercase letter (spec §4.3 step 3).
func splitSentences(p string) []string {
	var out []string
	last := 0
	matches := sentenceRe.FindAllStringSubmatchIndex(p, -1)
	for _, m := range matches {
		// m[3] is the end of the punctuation capture group (inclusive split point).
		splitAt := m[3]
		out = append(out, p[last:splitAt])
		last = splitAt
	}
	tail := strings.TrimSpace(p[last:])
	if tail != "" {
		out = append(out, tail)
	}
	if len(out) == 0 {
		return []string{p}
	}
	return out
}

// windowSplit is the last-resort splitter for a single sentence that still
// exceeds MaxChunkSize: a sliding character window with step
// MaxChunkSize-Overlap.
func windowSplit(s string, cfg Config) []string {
	runes := []rune(s)
	step := cfg.MaxChunkSize - cfg.Overlap
	if step <= 0 {
		step = cfg.MaxChunkSize
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + cfg.MaxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
