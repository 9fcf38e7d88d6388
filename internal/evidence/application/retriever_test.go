package application

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	evidence "smart-maintenance/internal/evidence/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
)

type stubSearcher struct {
	hits    []evidence.Snippet
	err     error
	block   bool
	calls   int
	queries []string
	limits  []int
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]evidence.Snippet, error) {
	s.calls++
	s.queries = append(s.queries, query)
	s.limits = append(s.limits, limit)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.hits, s.err
}

func TestBuildQueryIsStable(t *testing.T) {
	a := BuildQuery([]string{"overpressure", "overheat", "overheat"}, []telemetry.Signal{telemetry.SignalTemperature, telemetry.SignalPressure}, "maintenance procedure")
	b := BuildQuery([]string{"overheat", "overpressure"}, []telemetry.Signal{telemetry.SignalPressure, telemetry.SignalTemperature}, " maintenance procedure ")
	if a != b {
		t.Fatalf("expected identical queries, got %q and %q", a, b)
	}
	if a != "overheat overpressure pressure temperature maintenance procedure" {
		t.Fatalf("unexpected query %q", a)
	}
}

func TestRetrieveOrdersAndTruncates(t *testing.T) {
	searcher := &stubSearcher{hits: []evidence.Snippet{
		{DocumentID: "doc-c", Score: 0.5},
		{DocumentID: "doc-b", Score: 0.9},
		{DocumentID: "doc-a", Score: 0.9},
		{DocumentID: "doc-d", Score: 0.1, Excerpt: strings.Repeat("x", 700)},
	}}
	retriever, err := NewRetriever(searcher, Config{TopK: 3, QuerySuffix: "manual"})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	got, err := retriever.Retrieve(context.Background(), []string{"overheat"}, nil, 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	ids := make([]string, 0, len(got))
	for _, snippet := range got {
		ids = append(ids, snippet.DocumentID)
	}
	if diff := cmp.Diff([]string{"doc-a", "doc-b", "doc-c"}, ids); diff != "" {
		t.Fatalf("order mismatch:\n%s", diff)
	}
	if searcher.limits[0] != 3 || searcher.queries[0] != "overheat manual" {
		t.Fatalf("unexpected search call %q/%d", searcher.queries[0], searcher.limits[0])
	}

	all, err := retriever.Retrieve(context.Background(), []string{"overheat"}, nil, 10)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if n := len([]rune(all[3].Excerpt)); n != evidence.MaxExcerptRunes {
		t.Fatalf("expected excerpt truncated to %d, got %d", evidence.MaxExcerptRunes, n)
	}
}

func TestRetrieveZeroesNonFiniteScores(t *testing.T) {
	searcher := &stubSearcher{hits: []evidence.Snippet{
		{DocumentID: "doc-n", Score: math.NaN()},
		{DocumentID: "doc-b", Score: 0.4},
		{DocumentID: "doc-i", Score: math.Inf(1)},
		{DocumentID: "doc-a", Score: 0},
	}}
	retriever, err := NewRetriever(searcher, Config{TopK: 4})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	got, err := retriever.Retrieve(context.Background(), []string{"overheat"}, nil, 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	ids := make([]string, 0, len(got))
	for _, snippet := range got {
		ids = append(ids, snippet.DocumentID)
	}
	if diff := cmp.Diff([]string{"doc-b", "doc-a", "doc-i", "doc-n"}, ids); diff != "" {
		t.Fatalf("order mismatch:\n%s", diff)
	}
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestRetrieveWithoutFailureModesSkipsSearch(t *testing.T) {
	searcher := &stubSearcher{}
	retriever, err := NewRetriever(searcher, Config{})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	got, err := retriever.Retrieve(context.Background(), nil, nil, 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty evidence, got %v %v", got, err)
	}
	if searcher.calls != 0 {
		t.Fatalf("expected no search calls, got %d", searcher.calls)
	}
}

func TestRetrieveMapsErrorsToUnavailable(t *testing.T) {
	retriever, err := NewRetriever(&stubSearcher{err: errors.New("503")}, Config{})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if _, err := retriever.Retrieve(context.Background(), []string{"overheat"}, nil, 3); !errors.Is(err, evidence.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestRetrieveTimesOut(t *testing.T) {
	retriever, err := NewRetriever(&stubSearcher{block: true}, Config{Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	start := time.Now()
	_, err = retriever.Retrieve(context.Background(), []string{"overheat"}, nil, 3)
	if !errors.Is(err, evidence.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout was not applied")
	}
}
