package evidence

import (
	"context"
	"errors"
)

// MaxExcerptRunes bounds stored excerpt length.
const MaxExcerptRunes = 500

// ErrRetrievalUnavailable indicates the search index could not answer in time.
var ErrRetrievalUnavailable = errors.New("evidence: retrieval unavailable")

// Snippet is a ranked excerpt returned by the search index.
type Snippet struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Excerpt    string  `json:"excerpt"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

// Searcher runs a query against an external index. Ranking is the index's concern.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
