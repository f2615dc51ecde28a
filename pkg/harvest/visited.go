package harvest

import (
	"sync"

	"github.com/seekmed/medharvest/pkg/concepts"
)

// VisitedSet tracks the identifiers already emitted during one run. It
// guarantees at-most-once emission per run and breaks cycles in the
// subclass graph. One set may be shared by every category in a run so an
// id reachable from two categories is harvested once.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[concepts.QID]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[concepts.QID]struct{})}
}

// Visit marks id as seen and reports whether this was its first visit.
func (s *VisitedSet) Visit(id concepts.QID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Seen reports whether id has been visited.
func (s *VisitedSet) Seen(id concepts.QID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of visited identifiers.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
