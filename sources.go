package monoprice

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const NumSources = 6

// Sources maps input numbers 1-6 to user facing labels. The labels are
// supplied from outside (configuration); the amplifier itself only knows
// the numbers.
type Sources struct {
	mu     sync.RWMutex
	labels map[int]string
}

func defaultLabel(id int) string {
	return fmt.Sprintf("Source %d", id)
}

// DefaultSources labels every input "Source N".
func DefaultSources() *Sources {
	s, _ := NewSources(nil)
	return s
}

// NewSources builds a label map. Missing inputs get their default label.
// Ids outside 1-6 and duplicate labels fail with ErrInvalidValue.
func NewSources(labels map[int]string) (*Sources, error) {
	s := &Sources{labels: make(map[int]string, NumSources)}
	for id := 1; id <= NumSources; id++ {
		s.labels[id] = defaultLabel(id)
	}
	for id, label := range labels {
		if err := s.set(id, label); err != nil {
			return nil, err
		}
	}
	if err := s.checkUnique(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sources) set(id int, label string) error {
	if err := Source.Validate(id); err != nil {
		return err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = defaultLabel(id)
	}
	s.labels[id] = label
	return nil
}

func (s *Sources) checkUnique() error {
	seen := make(map[string]int, len(s.labels))
	for id, label := range s.labels {
		if other, found := seen[label]; found {
			return fmt.Errorf("%w: label %q used by sources %d and %d", ErrInvalidValue, label, other, id)
		}
		seen[label] = id
	}
	return nil
}

// Rename changes one label.
func (s *Sources) Rename(id int, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.labels[id]
	if err := s.set(id, label); err != nil {
		return err
	}
	if err := s.checkUnique(); err != nil {
		s.labels[id] = previous
		return err
	}
	return nil
}

// Label returns the label for id, or "Source N" for an unknown id.
func (s *Sources) Label(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if label, found := s.labels[id]; found {
		return label
	}
	return defaultLabel(id)
}

// Lookup resolves a label to its input number.
func (s *Sources) Lookup(label string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, l := range s.labels {
		if l == label {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown source %q", ErrInvalidValue, label)
}

// List returns the labels ordered by input number.
func (s *Sources) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.labels))
	for id := range s.labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = s.labels[id]
	}
	return labels
}

// Map returns a copy of the id to label mapping.
func (s *Sources) Map() map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[int]string, len(s.labels))
	for id, label := range s.labels {
		m[id] = label
	}
	return m
}
