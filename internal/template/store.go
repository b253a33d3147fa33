package template

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Store is the template catalog consumed by the orchestrator. Lookup is
// read-only; the only mutation is the per-template usage counter, which is
// an atomic increment because concurrent requests may render the same
// template simultaneously.
type Store struct {
	mu        sync.RWMutex
	templates map[string]*Template
	usage     map[string]*atomic.Int64
}

type catalogFile struct {
	Templates []*Template `yaml:"templates"`
}

// LoadStore reads a YAML catalog from path. A missing file yields the
// built-in default catalog.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(DefaultCatalog()), nil
		}
		return nil, fmt.Errorf("read template catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	for _, t := range file.Templates {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template catalog: %w", err)
		}
	}
	return NewStore(file.Templates), nil
}

// NewStore builds a store from an in-memory template list.
func NewStore(templates []*Template) *Store {
	s := &Store{
		templates: make(map[string]*Template, len(templates)),
		usage:     make(map[string]*atomic.Int64, len(templates)),
	}
	for _, t := range templates {
		s.templates[t.ID] = t
		s.usage[t.ID] = &atomic.Int64{}
	}
	return s
}

// GetActive returns the active template with the given id.
func (s *Store) GetActive(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok || !t.Active {
		return nil, fmt.Errorf("no active template with id %q", id)
	}
	return t, nil
}

// GetActiveByCategory returns all active templates in a category, sorted by
// name for stable listing.
func (s *Store) GetActiveByCategory(category string) []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Template
	for _, t := range s.templates {
		if t.Active && t.Category == category {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Categories returns the sorted set of categories with active templates.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	for _, t := range s.templates {
		if t.Active {
			seen[t.Category] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// IncrementUsage bumps the usage counter for a template. Unknown ids are
// ignored; usage accounting must never fail a request.
func (s *Store) IncrementUsage(id string) {
	s.mu.RLock()
	counter, ok := s.usage[id]
	s.mu.RUnlock()
	if ok {
		counter.Add(1)
	}
}

// UsageCount reports the current usage counter for a template.
func (s *Store) UsageCount(id string) int64 {
	s.mu.RLock()
	counter, ok := s.usage[id]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return counter.Load()
}
