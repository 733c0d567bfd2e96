// Package rotation tracks which questions were already presented at the
// current tier so the question source can avoid repeats.
package rotation

import "slices"

// DefaultCap bounds the exclusion list sent to the question source.
const DefaultCap = 50

// Set is the ordered list of question ids presented since the last tier
// change or rotation reset, oldest first.
type Set []string

// Contains reports whether id is in the set.
func (s Set) Contains(id string) bool {
	return slices.Contains(s, id)
}

// Clone returns an independent copy. A nil set stays nil.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// Policy updates the exclusion set after each answer.
type Policy struct {
	// Cap is the maximum number of ids retained. Oldest ids are dropped
	// first. Zero means unbounded.
	Cap int
}

// DefaultPolicy returns a policy with DefaultCap.
func DefaultPolicy() Policy {
	return Policy{Cap: DefaultCap}
}

// Next returns the exclusion set after answering justAnswered. A tier change
// empties the set; otherwise the id is appended once.
func (p Policy) Next(current Set, justAnswered string, tierChanged bool) Set {
	if tierChanged {
		return Set{}
	}
	next := current.Clone()
	if justAnswered != "" && !next.Contains(justAnswered) {
		next = append(next, justAnswered)
	}
	if p.Cap > 0 && len(next) > p.Cap {
		next = slices.Clone(next[len(next)-p.Cap:])
	}
	if next == nil {
		next = Set{}
	}
	return next
}

// Served checks an id returned by the question source. A repeat means the
// pool for the tier is exhausted; the set is reset and reset is true.
func (p Policy) Served(current Set, served string) (next Set, reset bool) {
	if current.Contains(served) {
		return Set{}, true
	}
	return current, false
}
