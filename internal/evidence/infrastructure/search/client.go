package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	evidence "smart-maintenance/internal/evidence/domain"
)

const defaultAPIVersion = "2023-11-01"

// Client is a minimal Azure AI Search REST client.
type Client struct {
	baseURL    string
	index      string
	apiKey     string
	apiVersion string
	client     *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a search client for one index.
func NewClient(baseURL, index, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("search: empty base url")
	}
	if index == "" {
		return nil, errors.New("search: empty index")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		index:      index,
		apiKey:     apiKey,
		apiVersion: defaultAPIVersion,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ServiceURL returns the endpoint for an Azure search service name.
func ServiceURL(service string) string {
	return "https://" + service + ".search.windows.net"
}

type searchRequest struct {
	Search    string `json:"search"`
	Top       int    `json:"top"`
	QueryType string `json:"queryType"`
}

type searchDocument struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Chunk   string  `json:"chunk"`
	Source  string  `json:"source"`
	Score   float64 `json:"@search.score"`
}

type searchResponse struct {
	Value []searchDocument `json:"value"`
}

// Search runs a simple query and maps documents to snippets.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]evidence.Snippet, error) {
	if c == nil {
		return nil, errors.New("search: nil client")
	}
	path := "/indexes/" + url.PathEscape(c.index) + "/docs/search?api-version=" + url.QueryEscape(c.apiVersion)
	var resp searchResponse
	if err := c.doJSON(ctx, http.MethodPost, path, searchRequest{Search: query, Top: limit, QueryType: "simple"}, &resp); err != nil {
		return nil, err
	}
	out := make([]evidence.Snippet, 0, len(resp.Value))
	for _, doc := range resp.Value {
		excerpt := doc.Content
		if excerpt == "" {
			excerpt = doc.Chunk
		}
		out = append(out, evidence.Snippet{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Excerpt:    evidence.Truncate(excerpt, evidence.MaxExcerptRunes),
			Source:     doc.Source,
			Score:      doc.Score,
		})
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("search: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
