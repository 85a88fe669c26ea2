package pinyin

import "sort"

// Set is an unordered collection of initials or finals.
type Set map[string]struct{}

// Add inserts s.
func (s Set) Add(v string) {
	s[v] = struct{}{}
}

// Has reports membership. A nil Set is empty.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Merge adds every member of other.
func (s Set) Merge(other Set) {
	for v := range other {
		s[v] = struct{}{}
	}
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	out.Merge(s)
	return out
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
