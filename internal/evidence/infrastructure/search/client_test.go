package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchSendsQueryAndMapsDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/indexes/manuals/docs/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2024-07-01" {
			t.Fatalf("unexpected api version %s", r.URL.RawQuery)
		}
		if r.Header.Get("api-key") != "secret" {
			t.Fatalf("missing api key header")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["search"] != "overheat maintenance" || body["top"] != float64(3) || body["queryType"] != "simple" {
			t.Fatalf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"value":[
			{"id":"m-1","title":"Pump manual","content":"` + strings.Repeat("a", 600) + `","source":"manuals/pump.pdf","@search.score":2.5},
			{"id":"m-2","title":"Cooling","chunk":"check fan","source":"kb","@search.score":1.25}
		]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", "manuals", "secret", WithAPIVersion("2024-07-01"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := client.Search(context.Background(), "overheat maintenance", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(got))
	}
	if got[0].DocumentID != "m-1" || got[0].Score != 2.5 || len(got[0].Excerpt) != 500 {
		t.Fatalf("unexpected first snippet %+v", got[0])
	}
	if got[1].Excerpt != "check fan" {
		t.Fatalf("expected chunk fallback, got %q", got[1].Excerpt)
	}
}

func TestSearchReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "manuals", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Search(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient("", "idx", ""); err == nil {
		t.Fatal("expected base url error")
	}
	if _, err := NewClient("http://x", "", ""); err == nil {
		t.Fatal("expected index error")
	}
	if ServiceURL("plant") != "https://plant.search.windows.net" {
		t.Fatal("unexpected service url")
	}
}
