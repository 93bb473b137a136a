package worldstate

import (
	"fmt"
	"strings"
)

// Fact is a single unary fact, pred(value).
type Fact struct {
	Pred  string
	Value string
}

func (f Fact) String() string {
	return fmt.Sprintf("%s(%s)", f.Pred, f.Value)
}

// Relation is a single binary relation pair, rel(a, b).
type Relation struct {
	Rel string
	A   string
	B   string
}

func (r Relation) String() string {
	return fmt.Sprintf("%s(%s, %s)", r.Rel, r.A, r.B)
}

// Delta describes how one State differs from another. All slices are sorted.
type Delta struct {
	AddedFacts       []Fact
	RemovedFacts     []Fact
	AddedRelations   []Relation
	RemovedRelations []Relation
}

// Empty reports whether the delta has no changes.
func (d Delta) Empty() bool {
	return len(d.AddedFacts) == 0 &&
		len(d.RemovedFacts) == 0 &&
		len(d.AddedRelations) == 0 &&
		len(d.RemovedRelations) == 0
}

func (d Delta) String() string {
	if d.Empty() {
		return "(no changes)"
	}
	var lines []string
	for _, f := range d.AddedFacts {
		lines = append(lines, "+ "+f.String())
	}
	for _, f := range d.RemovedFacts {
		lines = append(lines, "- "+f.String())
	}
	for _, r := range d.AddedRelations {
		lines = append(lines, "+ "+r.String())
	}
	for _, r := range d.RemovedRelations {
		lines = append(lines, "- "+r.String())
	}
	return strings.Join(lines, "\n")
}

// Diff returns the changes that turn s into next.
func (s *State) Diff(next *State) Delta {
	var d Delta
	for _, pred := range sortedKeys(next.facts) {
		for _, v := range next.facts[pred].sorted() {
			if !s.HasFactValue(pred, v) {
				d.AddedFacts = append(d.AddedFacts, Fact{Pred: pred, Value: v})
			}
		}
	}
	for _, pred := range sortedKeys(s.facts) {
		for _, v := range s.facts[pred].sorted() {
			if !next.HasFactValue(pred, v) {
				d.RemovedFacts = append(d.RemovedFacts, Fact{Pred: pred, Value: v})
			}
		}
	}
	d.AddedRelations = relationsMissing(next, s)
	d.RemovedRelations = relationsMissing(s, next)
	return d
}

// relationsMissing returns the pairs present in from but absent in to.
func relationsMissing(from, to *State) []Relation {
	var out []Relation
	for _, rel := range sortedKeys(from.relations) {
		byFirst := from.relations[rel]
		for _, a := range sortedKeys(byFirst) {
			for _, b := range byFirst[a].sorted() {
				if !to.HasRelationPair(rel, a, b) {
					out = append(out, Relation{Rel: rel, A: a, B: b})
				}
			}
		}
	}
	return out
}
