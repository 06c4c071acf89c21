// Named string sets (eg, seed blacklist identifiers or sensitive words),
// loaded from a JSON file of the form {"name": ["val", ...]}.
package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
)

// Well-known set names.
const (
	SetBlacklist      = "blacklist"
	SetSensitiveWords = "sensitive_words"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	// Members returns the sorted contents of a set; an unknown set is empty.
	Members(ctx context.Context, name string) ([]string, error)
}

type MemSetStore struct {
	mu   sync.RWMutex
	Sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// NOTE: returns false when the entire set isn't found
	return s.Sets[name][val], nil
}

func (s *MemSetStore) Members(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.Sets[name]))
	for v := range s.Sets[name] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Add inserts values into a set, creating it if needed.
func (s *MemSetStore) Add(name string, vals ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Sets[name]
	if !ok {
		m = make(map[string]bool, len(vals))
		s.Sets[name] = m
	}
	for _, v := range vals {
		if v != "" {
			m[v] = true
		}
	}
}

// LoadFromFileJSON replaces every set named in the file.
func (s *MemSetStore) LoadFromFileJSON(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, l := range sets {
		m := make(map[string]bool, len(l))
		for _, val := range l {
			if val != "" {
				m[val] = true
			}
		}
		s.Sets[name] = m
	}
	return nil
}
