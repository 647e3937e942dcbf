// Package tokencost approximates token counts for pre-flight estimates
// and computes the monetary cost and margin of a provider call.
package tokencost

import (
	"strings"
	"sync"
	"unicode"

	"github.com/golang/groupcache/lru"
)

// Estimator approximates the token count of a prompt when a provider
// response omits usage (a stream aborted mid-flight, a vendor that
// doesn't report usage for a given endpoint). It is not a substitute
// for a real vendor tokenizer — it is a word/punctuation heuristic,
// the same order-of-magnitude estimate other pre-flight budgeting
// tools in the pack use, memoized since the same system prompts are
// re-estimated across many pipeline runs.
type Estimator struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewEstimator creates an Estimator whose memoization cache holds up to
// maxEntries distinct strings. A maxEntries of 0 disables the cache.
func NewEstimator(maxEntries int) *Estimator {
	var c *lru.Cache
	if maxEntries > 0 {
		c = lru.New(maxEntries)
	}
	return &Estimator{cache: c}
}

// Estimate returns the approximate token count of text.
func (e *Estimator) Estimate(text string) int {
	if e.cache == nil {
		return estimateTokens(text)
	}

	e.mu.Lock()
	if v, ok := e.cache.Get(text); ok {
		e.mu.Unlock()
		return v.(int)
	}
	e.mu.Unlock()

	n := estimateTokens(text)

	e.mu.Lock()
	e.cache.Add(text, n)
	e.mu.Unlock()

	return n
}

// estimateTokens counts "words" (runs of letters/digits) as one token
// each and every punctuation or symbol character as a token of its
// own, then applies a 0.75 words-per-token fudge
// factor — the rough ratio most BPE tokenizers land on for English
// prose. It is deliberately cheap: no vendor-specific vocabulary, no
// byte-pair merges.
func estimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	words := 0
	inRun := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inRun = false
			continue
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			words++
			inRun = false
			continue
		}
		if !inRun {
			words++
			inRun = true
		}
	}

	tokens := int(float64(words) / 0.75)
	if tokens < words {
		tokens = words
	}
	return tokens
}
