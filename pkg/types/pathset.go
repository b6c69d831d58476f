package types

import "sort"

// PathSet is a set of slash-separated paths relative to a tree root.
type PathSet map[string]struct{}

// NewPathSet returns a set holding the given paths.
func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts p.
func (s PathSet) Add(p string) {
	s[p] = struct{}{}
}

// Remove deletes p.
func (s PathSet) Remove(p string) {
	delete(s, p)
}

// Has reports whether p is in the set.
func (s PathSet) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Len returns the number of paths.
func (s PathSet) Len() int {
	return len(s)
}

// Sorted returns the paths in lexical order.
func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Intersect returns the paths present in both sets.
func (s PathSet) Intersect(other PathSet) PathSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(PathSet)
	for p := range small {
		if large.Has(p) {
			out.Add(p)
		}
	}
	return out
}

// Union returns the paths present in either set.
func (s PathSet) Union(other PathSet) PathSet {
	out := make(PathSet, len(s)+len(other))
	for p := range s {
		out.Add(p)
	}
	for p := range other {
		out.Add(p)
	}
	return out
}

// Difference returns the paths in s that are not in other.
func (s PathSet) Difference(other PathSet) PathSet {
	out := make(PathSet)
	for p := range s {
		if !other.Has(p) {
			out.Add(p)
		}
	}
	return out
}

// Filter returns the paths for which keep returns true.
func (s PathSet) Filter(keep func(string) bool) PathSet {
	out := make(PathSet)
	for p := range s {
		if keep(p) {
			out.Add(p)
		}
	}
	return out
}
