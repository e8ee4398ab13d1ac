// Package chunker implements the token-aware, structure-aware text
// splitter from spec §4.2 step 4: section headings first, then
// paragraphs, then sentences, then words, then raw characters, each
// stage only engaged when the text still exceeds the target token
// count, carrying an overlap of trailing tokens into the next chunk.
// Grounded on the cascading recursiveSplitter/boundarySplitter pattern
// in the sibling textsplitters package, rebuilt here to size by token
// count rather than byte/rune count.
package chunker

import (
	"regexp"
	"strings"

	"ragcorpus/internal/config"
	"ragcorpus/internal/tokencount"
)

// Chunk is one output unit: text plus its token count, ready to become
// a model.Chunk once the caller attaches document/position metadata.
type Chunk struct {
	Text       string
	TokenCount int
}

var (
	headingRe = regexp.MustCompile(`(?m)^(#{1,6}\s+.+|[A-Z][A-Za-z0-9 ]{2,60}\n[=-]{3,}\s*)$`)
	blankRe   = regexp.MustCompile(`\n\s*\n+`)
	sentRe    = regexp.MustCompile(`(?s)([^.!?]+[.!?]+|[^.!?]+$)`)
)

// Split divides text into chunks sized per cfg's preset (spec §4.2
// step 4; presets resolved via config.IngestionConfig.ChunkSizing).
func Split(text string, cfg config.IngestionConfig, counter tokencount.Counter) []Chunk {
	maxTokens, overlapTokens := cfg.ChunkSizing()
	return splitRecursive(text, maxTokens, overlapTokens, counter)
}

func splitRecursive(text string, maxTokens, overlapTokens int, counter tokencount.Counter) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if counter.Count(text) <= maxTokens {
		return []Chunk{{Text: text, TokenCount: counter.Count(text)}}
	}

	sections := splitByHeadings(text)
	if len(sections) <= 1 {
		sections = splitByParagraphs(text)
	}
	if len(sections) <= 1 {
		sections = splitBySentences(text)
	}
	if len(sections) <= 1 {
		sections = splitByWords(text)
	}
	if len(sections) <= 1 {
		return splitByChars(text, maxTokens, overlapTokens, counter)
	}

	return pack(sections, maxTokens, overlapTokens, counter)
}

func splitByHeadings(text string) []string {
	idx := headingRe.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return []string{text}
	}
	var out []string
	start := 0
	for _, loc := range idx {
		if loc[0] > start {
			out = append(out, text[start:loc[0]])
		}
		start = loc[0]
	}
	out = append(out, text[start:])
	return nonEmpty(out)
}

func splitByParagraphs(text string) []string {
	return nonEmpty(blankRe.Split(text, -1))
}

func splitBySentences(text string) []string {
	return nonEmpty(sentRe.FindAllString(text, -1))
}

func splitByWords(text string) []string {
	return nonEmpty(strings.Fields(text))
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pack greedily accumulates units (headings/paragraphs/sentences/words)
// until adding the next would exceed maxTokens, then starts a new chunk
// seeded with the trailing overlapTokens worth of the previous chunk —
// the same sliding-window overlap pattern the boundary splitter uses,
// sized in tokens instead of runes.
func pack(units []string, maxTokens, overlapTokens int, counter tokencount.Counter) []Chunk {
	var out []Chunk
	var cur strings.Builder
	curTokens := 0

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s == "" {
			return
		}
		out = append(out, Chunk{Text: s, TokenCount: counter.Count(s)})
	}

	for _, u := range units {
		// a single unit larger than the whole budget must itself be
		// recursively split (e.g. a heading section that's still huge).
		if counter.Count(u) > maxTokens {
			flush()
			cur.Reset()
			curTokens = 0
			out = append(out, splitRecursive(u, maxTokens, overlapTokens, counter)...)
			continue
		}

		candidate := u
		if cur.Len() > 0 {
			candidate = cur.String() + "\n\n" + u
		}
		ct := counter.Count(candidate)
		if ct <= maxTokens || cur.Len() == 0 {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(u)
			curTokens = ct
			continue
		}

		prev := cur.String()
		flush()
		tail := overlapTail(prev, overlapTokens, counter)
		cur.Reset()
		if tail != "" {
			cur.WriteString(tail)
			cur.WriteString("\n\n")
		}
		cur.WriteString(u)
		curTokens = counter.Count(cur.String())
	}
	_ = curTokens
	flush()
	return out
}

func overlapTail(text string, overlapTokens int, counter tokencount.Counter) string {
	if overlapTokens <= 0 || text == "" {
		return ""
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	// binary-search-free shrink from the end until the tail fits the budget
	for n := len(words); n > 0; n-- {
		tail := strings.Join(words[len(words)-n:], " ")
		if counter.Count(tail) <= overlapTokens {
			return tail
		}
	}
	return ""
}

func splitByChars(text string, maxTokens, overlapTokens int, counter tokencount.Counter) []Chunk {
	approxCharsPerToken := 4
	maxChars := maxTokens * approxCharsPerToken
	overlapChars := overlapTokens * approxCharsPerToken
	if maxChars <= 0 {
		maxChars = 1500
	}
	runes := []rune(text)
	var out []Chunk
	for start := 0; start < len(runes); {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			out = append(out, Chunk{Text: s, TokenCount: counter.Count(s)})
		}
		if end == len(runes) {
			break
		}
		start = end - overlapChars
		if start < 0 || start >= end {
			start = end
		}
	}
	return out
}
