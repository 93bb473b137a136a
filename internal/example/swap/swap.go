// Package swap is the minimal HTN domain: exchange the item held for another.
package swap

import (
	"github.com/joeycumines/go-htn/internal/domain"
	"github.com/joeycumines/go-htn/internal/worldstate"
)

// Have is the predicate listing held items.
const Have = "have"

func pickup(s *worldstate.State, args ...any) *worldstate.State {
	item, ok := domain.StringArg(args, 0)
	if !ok || s.HasFactValue(Have, item) {
		return nil
	}
	s.AddFact(Have, item)
	return s
}

func drop(s *worldstate.State, args ...any) *worldstate.State {
	item, ok := domain.StringArg(args, 0)
	if !ok || !s.HasFactValue(Have, item) {
		return nil
	}
	s.RemoveFact(Have, item)
	return s
}

func swap(s *worldstate.State, args ...any) []domain.Task {
	a, ok1 := domain.StringArg(args, 0)
	b, ok2 := domain.StringArg(args, 1)
	if !ok1 || !ok2 {
		return nil
	}
	switch {
	case s.HasFactValue(Have, a) && !s.HasFactValue(Have, b):
		return []domain.Task{domain.NewTask("Drop", a), domain.NewTask("Pickup", b)}
	case s.HasFactValue(Have, b) && !s.HasFactValue(Have, a):
		return []domain.Task{domain.NewTask("Drop", b), domain.NewTask("Pickup", a)}
	default:
		return nil
	}
}

// NewRegistry returns the domain's registry.
func NewRegistry() (*domain.Registry, error) {
	r := domain.NewRegistry()
	if err := r.RegisterOperators(map[string]domain.Operator{
		"Pickup": pickup,
		"Drop":   drop,
	}); err != nil {
		return nil, err
	}
	if err := r.RegisterMethods("Swap", swap); err != nil {
		return nil, err
	}
	return r, nil
}

// Goal returns the task list Swap(a, b).
func Goal(a, b string) []domain.Task {
	return []domain.Task{domain.NewTask("Swap", a, b)}
}

// InitialState holds item x and not y.
func InitialState() *worldstate.State {
	s := worldstate.New()
	s.AddFact(Have, "x")
	return s
}
