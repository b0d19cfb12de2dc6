package extract

import "github.com/vietddude/addrindex/internal/core/domain"

// Set is an insertion-ordered set of addresses. Empty strings and the
// unknown-address sentinel are dropped on Add.
type Set struct {
	seen  map[string]struct{}
	order []string
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add inserts addresses not yet present.
func (s *Set) Add(addrs ...string) {
	for _, a := range addrs {
		if a == "" || a == domain.UnknownAddress {
			continue
		}
		if _, ok := s.seen[a]; ok {
			continue
		}
		s.seen[a] = struct{}{}
		s.order = append(s.order, a)
	}
}

// Len returns the number of distinct addresses.
func (s *Set) Len() int { return len(s.order) }

// Values returns the addresses in first-seen order.
func (s *Set) Values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
