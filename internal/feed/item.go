// Package feed defines the incoming news item value type.
//
// Items arrive pre-scored from an external classifier; the engine treats
// the score as opaque input in the 0..10 range.
package feed

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Item is one scored news article. Immutable once received.
//
// URL is the stable identity key: it drives batch set semantics and the
// sink dedup tag.
type Item struct {
	Headline   string    `json:"headline"`
	Source     string    `json:"source"`
	URL        string    `json:"url"`
	Score      float64   `json:"importance_score"`
	ReceivedAt time.Time `json:"received_at"`
	Summary    string    `json:"summary,omitempty"`
}

// Valid reports whether the item carries the minimum fields required to
// be classified. Items without a headline or URL are dropped upstream.
func (it Item) Valid() bool {
	return strings.TrimSpace(it.Headline) != "" && strings.TrimSpace(it.URL) != ""
}

// ContentHash returns a stable identity for near-duplicate detection:
// two items with the same normalized headline+summary hash identically
// even when their URLs differ.
func (it Item) ContentHash() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(it.Headline))))
	_, _ = h.Write([]byte(" "))
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(it.Summary))))
	return fmt.Sprintf("%x", h.Sum64())
}
