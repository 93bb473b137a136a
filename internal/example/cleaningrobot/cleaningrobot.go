// Package cleaningrobot is a household-robot HTN domain: the robot walks the
// adjacency graph between rooms, cleans every dirty room, then finishes.
package cleaningrobot

import (
	"github.com/joeycumines/go-htn/internal/domain"
	"github.com/joeycumines/go-htn/internal/worldstate"
)

// Fact and relation names used by the domain.
const (
	At       = "at"
	Dirty    = "dirty"
	Clean    = "clean"
	Finished = "finished"
	Adjacent = "adjacent"
)

// Operators holds the primitive actions. They are registered through
// domain.Registry.DiscoverOperators.
type Operators struct{}

// MoveTo moves the robot to an adjacent room.
func (Operators) MoveTo(s *worldstate.State, args ...any) *worldstate.State {
	room, ok := domain.StringArg(args, 0)
	if !ok {
		return nil
	}
	here, ok := s.Value(At)
	if !ok || here == room || !adjacent(s, here, room) {
		return nil
	}
	s.SetFact(At, room)
	return s
}

// Clean cleans the dirty room the robot is standing in.
func (Operators) Clean(s *worldstate.State, args ...any) *worldstate.State {
	room, ok := domain.StringArg(args, 0)
	if !ok || !s.HasFactValue(At, room) || !s.HasFactValue(Dirty, room) {
		return nil
	}
	s.RemoveFact(Dirty, room)
	s.AddFact(Clean, room)
	return s
}

// Finish marks the job done once no room is dirty.
func (Operators) Finish(s *worldstate.State, _ ...any) *worldstate.State {
	if s.HasFact(Dirty) {
		return nil
	}
	s.SetFact(Finished, "true")
	return s
}

// cleanNext decomposes CleanRooms while dirty rooms remain.
func cleanNext(s *worldstate.State, _ ...any) []domain.Task {
	dirty, ok := s.ValuesOf(Dirty)
	if !ok {
		return nil
	}
	room := dirty[0]
	return []domain.Task{
		domain.NewTask("GoTo", room),
		domain.NewTask("Clean", room),
		domain.NewTask("CleanRooms"),
	}
}

// cleanDone decomposes CleanRooms once every room is clean.
func cleanDone(s *worldstate.State, _ ...any) []domain.Task {
	if s.HasFact(Dirty) {
		return nil
	}
	return []domain.Task{domain.NewTask("Finish")}
}

// goToArrived succeeds with no subtasks when the robot is already there.
func goToArrived(s *worldstate.State, args ...any) []domain.Task {
	room, ok := domain.StringArg(args, 0)
	if !ok || !s.HasFactValue(At, room) {
		return nil
	}
	return []domain.Task{}
}

// goToStep takes the first step of a shortest path, then recurses.
func goToStep(s *worldstate.State, args ...any) []domain.Task {
	room, ok := domain.StringArg(args, 0)
	if !ok {
		return nil
	}
	here, ok := s.Value(At)
	if !ok || here == room {
		return nil
	}
	next, ok := firstStep(s, here, room)
	if !ok {
		return nil
	}
	return []domain.Task{
		domain.NewTask("MoveTo", next),
		domain.NewTask("GoTo", room),
	}
}

// NewRegistry returns the domain's registry.
func NewRegistry() (*domain.Registry, error) {
	r := domain.NewRegistry()
	if _, err := r.DiscoverOperators(Operators{}); err != nil {
		return nil, err
	}
	if err := r.RegisterMethods("CleanRooms", cleanNext, cleanDone); err != nil {
		return nil, err
	}
	if err := r.RegisterMethods("GoTo", goToArrived, goToStep); err != nil {
		return nil, err
	}
	return r, nil
}

// Goal is the top-level task list.
func Goal() []domain.Task {
	return []domain.Task{domain.NewTask("CleanRooms")}
}

// InitialState builds the reference scenario: the robot in room0, room2
// dirty, and a corridor room0 - room1 - room2.
func InitialState() *worldstate.State {
	s := worldstate.New()
	s.AddFact(At, "room0")
	s.AddFact(Dirty, "room2")
	s.AddRelation(Adjacent, "room0", "room1")
	s.AddRelation(Adjacent, "room1", "room2")
	return s
}

// adjacent treats the adjacency relation as undirected.
func adjacent(s *worldstate.State, a, b string) bool {
	return s.HasRelationPair(Adjacent, a, b) || s.HasRelationPair(Adjacent, b, a)
}

func neighbours(s *worldstate.State, room string) []string {
	out, _ := s.RelatedTo(Adjacent, room)
	return append(out, s.UnifyRelation(Adjacent, room)...)
}

// firstStep runs a breadth-first search from -> to, returning the first room
// on a shortest path. Neighbours are visited in sorted order, so the result
// is deterministic.
func firstStep(s *worldstate.State, from, to string) (string, bool) {
	type item struct{ room, first string }
	seen := map[string]bool{from: true}
	queue := []item{}
	for _, n := range neighbours(s, from) {
		if !seen[n] {
			seen[n] = true
			queue = append(queue, item{room: n, first: n})
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.room == to {
			return cur.first, true
		}
		for _, n := range neighbours(s, cur.room) {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, item{room: n, first: cur.first})
			}
		}
	}
	return "", false
}
