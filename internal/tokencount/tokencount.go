// Package tokencount counts tokens the way the chunker and context
// assembler need to budget text: a tiktoken-go BPE encoder for the
// model's own encoding, else cl100k_base, falling back to the
// traditional 4-characters-per-token heuristic only when neither
// encoding can be loaded (spec §4.2's
// chunker and §4.3's context assembler both need a token count without
// requiring every configured model to have a known tiktoken encoding).
package tokencount

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in a string for a specific model/encoding.
type Counter interface {
	Count(s string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

type heuristicCounter struct{}

// charsPerToken is the widely used English-text approximation; used only
// when tiktoken can load neither the model's encoding nor cl100k_base.
const charsPerToken = 4

func (heuristicCounter) Count(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	tokens := n / charsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

var (
	mu    sync.Mutex
	cache = make(map[string]Counter)
)

// ForModel returns a Counter for model, trying tiktoken's encoding for
// model first, then cl100k_base (the encoding shared by the
// gpt-3.5/gpt-4/text-embedding-3 family), and degrading to the
// character heuristic if neither can be loaded.
func ForModel(model string) Counter {
	mu.Lock()
	defer mu.Unlock()
	if c, ok := cache[model]; ok {
		return c
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	var c Counter
	if err != nil {
		c = heuristicCounter{}
	} else {
		c = &tiktokenCounter{enc: enc}
	}
	cache[model] = c
	return c
}
