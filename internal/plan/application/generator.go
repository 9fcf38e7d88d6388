package application

import (
	"errors"
	"fmt"
	"sort"
	"time"

	evidence "smart-maintenance/internal/evidence/domain"
	plan "smart-maintenance/internal/plan/domain"
	risk "smart-maintenance/internal/risk/domain"
)

// Generator builds repair plans from a template catalog.
type Generator struct {
	catalog plan.Catalog
}

// NewGenerator constructs a generator.
func NewGenerator(catalog plan.Catalog) (*Generator, error) {
	if len(catalog.Templates) == 0 {
		return nil, errors.New("generator: empty template catalog")
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &Generator{catalog: catalog}, nil
}

// Generate merges the templates of every failure mode in lexicographic label
// order. Each list keeps the first occurrence of duplicate entries.
func (g *Generator) Generate(assessment risk.Assessment, snippets []evidence.Snippet) (plan.RepairPlan, error) {
	if g == nil {
		return plan.RepairPlan{}, errors.New("generator: nil generator")
	}
	labels := append([]string(nil), assessment.FailureModes...)
	sort.Strings(labels)

	steps := newOrderedSet()
	loto := newOrderedSet()
	parts := newOrderedSet()
	rollback := newOrderedSet()
	var eta time.Duration
	var modes []string

	for i, label := range labels {
		if i > 0 && labels[i-1] == label {
			continue
		}
		tmpl, ok := g.catalog.Templates[label]
		if !ok {
			return plan.RepairPlan{}, fmt.Errorf("%w: %s", plan.ErrUnknownFailureMode, label)
		}
		modes = append(modes, label)
		for _, step := range tmpl.Steps {
			if steps.add(step.Text) {
				eta += g.catalog.Duration(step.Category)
			}
		}
		loto.addAll(tmpl.LockoutTagout)
		parts.addAll(tmpl.Parts)
		rollback.addAll(tmpl.Rollback)
	}

	out := plan.RepairPlan{
		FailureModes:  nonNil(modes),
		Steps:         steps.items,
		LockoutTagout: loto.items,
		Parts:         parts.items,
		Rollback:      rollback.items,
		ETA:           eta,
		Evidence:      append([]evidence.Snippet{}, snippets...),
	}
	return out, nil
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(v string) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet) addAll(values []string) {
	for _, v := range values {
		s.add(v)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
