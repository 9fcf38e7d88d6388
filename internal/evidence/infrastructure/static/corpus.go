package static

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	evidence "smart-maintenance/internal/evidence/domain"
)

// Document is one entry of a local maintenance corpus.
type Document struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Source  string   `yaml:"source"`
	Tags    []string `yaml:"tags"`
}

// Corpus answers queries from documents held in memory by counting matching
// terms. It backs offline runs when no search service is configured.
type Corpus struct {
	docs []Document
}

// NewCorpus constructs a corpus.
func NewCorpus(docs []Document) *Corpus {
	return &Corpus{docs: docs}
}

// LoadCorpus reads a YAML list of documents.
func LoadCorpus(path string) (*Corpus, error) {
	if path == "" {
		return nil, errors.New("corpus: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("corpus: parse %s: %w", path, err)
	}
	return NewCorpus(docs), nil
}

// Search scores each document by how many query terms it contains.
// Ordering and the limit are applied by the caller.
func (c *Corpus) Search(ctx context.Context, query string, _ int) ([]evidence.Snippet, error) {
	if c == nil {
		return nil, errors.New("corpus: nil corpus")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := strings.Fields(strings.ToLower(query))
	var out []evidence.Snippet
	for _, doc := range c.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.Content + " " + strings.Join(doc.Tags, " "))
		score := 0.0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		out = append(out, evidence.Snippet{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Excerpt:    evidence.Truncate(doc.Content, evidence.MaxExcerptRunes),
			Source:     doc.Source,
			Score:      score,
		})
	}
	return out, nil
}
