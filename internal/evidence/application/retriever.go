package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	evidence "smart-maintenance/internal/evidence/domain"
	"smart-maintenance/internal/observability/metrics"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

const (
	defaultTopK    = 3
	defaultTimeout = 5 * time.Second
)

// Config tunes retrieval.
type Config struct {
	TopK        int
	Timeout     time.Duration
	QuerySuffix string
}

// Retriever fetches supporting evidence for detected failure modes.
type Retriever struct {
	searcher evidence.Searcher
	cfg      Config
	logger   zerolog.Logger
}

// RetrieverOption customizes the retriever.
type RetrieverOption func(*Retriever)

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever constructs a retriever.
func NewRetriever(searcher evidence.Searcher, cfg Config, opts ...RetrieverOption) (*Retriever, error) {
	if searcher == nil {
		return nil, errors.New("retriever: nil searcher")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	retriever := &Retriever{searcher: searcher, cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(retriever)
	}
	return retriever, nil
}

// DefaultTopK returns the configured k.
func (r *Retriever) DefaultTopK() int {
	return r.cfg.TopK
}

// BuildQuery derives the search text from sorted unique failure modes, sorted
// unique breached signals and the suffix.
func BuildQuery(failureModes []string, breached []telemetry.Signal, suffix string) string {
	terms := uniqueSorted(failureModes)
	signals := make([]string, 0, len(breached))
	for _, signal := range breached {
		signals = append(signals, string(signal))
	}
	terms = append(terms, uniqueSorted(signals)...)
	if suffix = strings.TrimSpace(suffix); suffix != "" {
		terms = append(terms, suffix)
	}
	return strings.Join(terms, " ")
}

// Retrieve queries the index and returns at most k snippets ordered by score
// descending, document id ascending. k <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, failureModes []string, breached []telemetry.Signal, k int) ([]evidence.Snippet, error) {
	if r == nil || r.searcher == nil {
		return nil, errors.New("retriever: not initialized")
	}
	if len(failureModes) == 0 {
		return []evidence.Snippet{}, nil
	}
	if k <= 0 {
		k = r.cfg.TopK
	}
	query := BuildQuery(failureModes, breached, r.cfg.QuerySuffix)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	hits, err := r.searcher.Search(ctx, query, k)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		metrics.ObserveRetrieval(metrics.ResultError, time.Since(start))
		r.logger.Warn().Err(err).Str("query", query).Msg("evidence retrieval failed")
		return nil, fmt.Errorf("%w: %v", evidence.ErrRetrievalUnavailable, err)
	}
	metrics.ObserveRetrieval(metrics.ResultSuccess, time.Since(start))

	out := make([]evidence.Snippet, len(hits))
	copy(out, hits)
	for i := range out {
		out[i].Excerpt = evidence.Truncate(out[i].Excerpt, evidence.MaxExcerptRunes)
		// non-finite scores break ordering and JSON encoding
		if math.IsNaN(out[i].Score) || math.IsInf(out[i].Score, 0) {
			out[i].Score = 0
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
