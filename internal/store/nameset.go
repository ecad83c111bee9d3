package store

import "strings"

// NameSet is an insertion-ordered set of usernames.
// The zero value is an empty set ready to use.
type NameSet struct {
	order []string
	index map[string]struct{}
}

// NewNameSet builds a set from names, dropping empties and duplicates.
func NewNameSet(names ...string) NameSet {
	var s NameSet
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// ParseNameSet parses a comma-joined list as written by CSV.
func ParseNameSet(csv string) NameSet {
	if csv == "" {
		return NameSet{}
	}
	return NewNameSet(strings.Split(csv, ",")...)
}

// Add inserts name. Returns false if it was already present or empty.
func (s *NameSet) Add(name string) bool {
	if name == "" || s.Has(name) {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	s.index[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

// Remove deletes name. Returns false if it was not present.
func (s *NameSet) Remove(name string) bool {
	if !s.Has(name) {
		return false
	}
	delete(s.index, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of names.
func (s NameSet) Len() int {
	return len(s.order)
}

// Values returns the names in insertion order.
func (s NameSet) Values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// CSV joins the names with commas; an empty set yields "".
func (s NameSet) CSV() string {
	return strings.Join(s.order, ",")
}

// Clone returns an independent copy.
func (s NameSet) Clone() NameSet {
	return NewNameSet(s.order...)
}
