// Package worldstate provides the fact database searched by the flat HTN
// planner.
//
// A State holds two kinds of knowledge:
//
//   - unary facts, mapping a predicate name to a set of values
//     (e.g. at -> {room3})
//   - binary relations, mapping a relation name to a first argument, to a set
//     of second arguments (e.g. adjacent[room1] -> {room2, room4})
//
// Sets never hold duplicates, and removing the last value under a key removes
// the key itself, at every nesting level. Read queries never fail for absent
// keys; they return empty results.
//
// State is not safe for concurrent mutation. The planner gives every search
// branch its own Clone, and the live (runtime) state is only written by the
// single control thread that executes operators.
package worldstate

import (
	"fmt"
	"sort"
	"strings"
)

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// State is a copy-on-branch fact database. The zero value is not usable; use
// New.
type State struct {
	facts     map[string]set
	relations map[string]map[string]set
}

// New returns an empty State.
func New() *State {
	return &State{
		facts:     make(map[string]set),
		relations: make(map[string]map[string]set),
	}
}

// Clone returns a deep copy of s. Mutating the clone never affects s, and vice
// versa.
func (s *State) Clone() *State {
	c := &State{
		facts:     make(map[string]set, len(s.facts)),
		relations: make(map[string]map[string]set, len(s.relations)),
	}
	for pred, values := range s.facts {
		cp := make(set, len(values))
		for v := range values {
			cp[v] = struct{}{}
		}
		c.facts[pred] = cp
	}
	for rel, byFirst := range s.relations {
		cpRel := make(map[string]set, len(byFirst))
		for a, seconds := range byFirst {
			cp := make(set, len(seconds))
			for b := range seconds {
				cp[b] = struct{}{}
			}
			cpRel[a] = cp
		}
		c.relations[rel] = cpRel
	}
	return c
}

// AddFact records value under pred. Adding an existing value is a no-op.
func (s *State) AddFact(pred, value string) {
	values, ok := s.facts[pred]
	if !ok {
		values = make(set)
		s.facts[pred] = values
	}
	values[value] = struct{}{}
}

// SetFact replaces every value of pred with the single value given.
func (s *State) SetFact(pred, value string) {
	s.facts[pred] = set{value: {}}
}

// RemoveFact removes value from pred, dropping pred when it becomes empty.
func (s *State) RemoveFact(pred, value string) {
	values, ok := s.facts[pred]
	if !ok {
		return
	}
	delete(values, value)
	if len(values) == 0 {
		delete(s.facts, pred)
	}
}

// ClearFact removes pred and all of its values.
func (s *State) ClearFact(pred string) {
	delete(s.facts, pred)
}

// HasFact reports whether pred holds any value.
func (s *State) HasFact(pred string) bool {
	_, ok := s.facts[pred]
	return ok
}

// HasFactValue reports whether pred holds value.
func (s *State) HasFactValue(pred, value string) bool {
	_, ok := s.facts[pred][value]
	return ok
}

// ValuesOf returns the sorted values of pred, and false if pred is absent.
func (s *State) ValuesOf(pred string) ([]string, bool) {
	values, ok := s.facts[pred]
	if !ok {
		return nil, false
	}
	return values.sorted(), true
}

// Value returns the single value of pred. It returns false when pred is
// absent, or holds more than one value.
func (s *State) Value(pred string) (string, bool) {
	values, ok := s.facts[pred]
	if !ok || len(values) != 1 {
		return "", false
	}
	for v := range values {
		return v, true
	}
	return "", false
}

// AddRelation records rel(a, b).
func (s *State) AddRelation(rel, a, b string) {
	byFirst, ok := s.relations[rel]
	if !ok {
		byFirst = make(map[string]set)
		s.relations[rel] = byFirst
	}
	seconds, ok := byFirst[a]
	if !ok {
		seconds = make(set)
		byFirst[a] = seconds
	}
	seconds[b] = struct{}{}
}

// RemoveRelation removes rel(a, b), pruning any keys left empty.
func (s *State) RemoveRelation(rel, a, b string) {
	byFirst, ok := s.relations[rel]
	if !ok {
		return
	}
	seconds, ok := byFirst[a]
	if !ok {
		return
	}
	delete(seconds, b)
	if len(seconds) == 0 {
		delete(byFirst, a)
	}
	if len(byFirst) == 0 {
		delete(s.relations, rel)
	}
}

// HasRelation reports whether rel holds for any pair.
func (s *State) HasRelation(rel string) bool {
	_, ok := s.relations[rel]
	return ok
}

// HasRelationFrom reports whether rel(a, x) holds for some x.
func (s *State) HasRelationFrom(rel, a string) bool {
	_, ok := s.relations[rel][a]
	return ok
}

// HasRelationPair reports whether rel(a, b) holds.
func (s *State) HasRelationPair(rel, a, b string) bool {
	_, ok := s.relations[rel][a][b]
	return ok
}

// RelatedTo returns the sorted b values such that rel(a, b) holds, and false
// when rel has no entry for a.
func (s *State) RelatedTo(rel, a string) ([]string, bool) {
	seconds, ok := s.relations[rel][a]
	if !ok {
		return nil, false
	}
	return seconds.sorted(), true
}

// UnifyRelation is the reverse lookup of RelatedTo: it returns the sorted a
// values such that rel(a, b) holds.
func (s *State) UnifyRelation(rel, b string) []string {
	var out []string
	for a, seconds := range s.relations[rel] {
		if _, ok := seconds[b]; ok {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// Facts returns a sorted copy of every unary fact.
func (s *State) Facts() map[string][]string {
	out := make(map[string][]string, len(s.facts))
	for pred, values := range s.facts {
		out[pred] = values.sorted()
	}
	return out
}

// Relations returns a sorted copy of every binary relation.
func (s *State) Relations() map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(s.relations))
	for rel, byFirst := range s.relations {
		m := make(map[string][]string, len(byFirst))
		for a, seconds := range byFirst {
			m[a] = seconds.sorted()
		}
		out[rel] = m
	}
	return out
}

// Len returns the total number of stored facts and relation pairs.
func (s *State) Len() int {
	n := 0
	for _, values := range s.facts {
		n += len(values)
	}
	for _, byFirst := range s.relations {
		for _, seconds := range byFirst {
			n += len(seconds)
		}
	}
	return n
}

// Equal reports whether s and other hold exactly the same content.
func (s *State) Equal(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}
	d := s.Diff(other)
	return d.Empty()
}

// String renders the state deterministically, for logs and test failures.
func (s *State) String() string {
	var b strings.Builder
	b.WriteString("State{")
	first := true
	sep := func() {
		if !first {
			b.WriteString(" ")
		}
		first = false
	}
	for _, pred := range sortedKeys(s.facts) {
		sep()
		_, _ = fmt.Fprintf(&b, "%s=%v", pred, s.facts[pred].sorted())
	}
	for _, rel := range sortedKeys(s.relations) {
		byFirst := s.relations[rel]
		for _, a := range sortedKeys(byFirst) {
			sep()
			_, _ = fmt.Fprintf(&b, "%s[%s]=%v", rel, a, byFirst[a].sorted())
		}
	}
	b.WriteString("}")
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
