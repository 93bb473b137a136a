// Package planner implements the flat HTN planner: a depth-first,
// backtracking search that decomposes a task list against a world state,
// using the operators and methods of a domain.Registry.
//
// Every operator and method invocation receives its own clone of the state,
// and every alternative (each method candidate) starts from a pristine plan
// prefix, so no search branch can observe another's writes.
package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joeycumines/go-htn/internal/domain"
	"github.com/joeycumines/go-htn/internal/worldstate"
)

// DefaultMaxDepth bounds the search recursion.
const DefaultMaxDepth = 30

var (
	// ErrNoPlan is returned when the search is exhausted without reaching an
	// empty task list.
	ErrNoPlan = errors.New("planner: no plan found")

	// ErrDepthExceeded is joined with ErrNoPlan when the recursion bound was
	// hit during a failed search. It usually means a malformed domain, such as
	// a method that re-adds its own task.
	ErrDepthExceeded = errors.New("planner: max depth exceeded")

	// ErrInvalidStep is returned by Apply when a plan step cannot be executed.
	ErrInvalidStep = errors.New("planner: invalid plan step")
)

// debugSearch enables per-task search tracing. Set HTN_DEBUG_SEARCH=1.
var debugSearch = os.Getenv("HTN_DEBUG_SEARCH") == "1"

// InvocationError wraps a panic recovered from an operator or method.
type InvocationError struct {
	Task  domain.Task
	Value any
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("planner: %s panicked: %v", e.Task, e.Value)
}

// Plan is an ordered sequence of grounded primitive tasks.
type Plan []domain.Task

// Strings renders every step, e.g. "(MoveTo, room1)".
func (p Plan) Strings() []string {
	out := make([]string, len(p))
	for i, t := range p {
		out[i] = t.String()
	}
	return out
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Planner solves planning problems against a fixed registry. A Planner holds
// no per-search state, and may be reused.
type Planner struct {
	registry *domain.Registry
	maxDepth int
	logger   *slog.Logger
}

// New returns a Planner for the given registry.
func New(registry *domain.Registry, opts ...Option) *Planner {
	if registry == nil {
		panic("planner.New: registry cannot be nil")
	}
	p := &Planner{
		registry: registry,
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxDepth returns the configured recursion bound.
func (p *Planner) MaxDepth() int {
	return p.maxDepth
}

// search carries the bookkeeping of a single Solve call. Once depthExceeded is
// set, no further alternatives are tried.
type search struct {
	*Planner
	depthExceeded bool
	expansions    int
}

// Solve finds a plan that accomplishes tasks, starting from initial. initial
// is never modified. An empty goal list yields an empty plan.
func (p *Planner) Solve(initial *worldstate.State, tasks []domain.Task) (Plan, error) {
	if initial == nil {
		return nil, fmt.Errorf("planner: nil initial state")
	}
	s := &search{Planner: p}
	plan, ok := s.seekPlan(initial, tasks, Plan{}, 0)
	if !ok {
		if s.depthExceeded {
			p.logger.Warn("[Planner] search hit the depth bound; check the domain for runaway recursion",
				"maxDepth", p.maxDepth,
				"goal", Plan(tasks).Strings())
			return nil, errors.Join(ErrNoPlan, ErrDepthExceeded)
		}
		p.logger.Debug("[Planner] no plan found",
			"goal", Plan(tasks).Strings(),
			"expansions", s.expansions)
		return nil, ErrNoPlan
	}
	p.logger.Debug("[Planner] plan found",
		"goal", Plan(tasks).Strings(),
		"plan", plan.Strings(),
		"expansions", s.expansions)
	return plan, nil
}

func (s *search) seekPlan(state *worldstate.State, tasks []domain.Task, plan Plan, depth int) (Plan, bool) {
	if depth >= s.maxDepth {
		s.depthExceeded = true
		return nil, false
	}
	if len(tasks) == 0 {
		return plan, true
	}
	s.expansions++

	task := tasks[0]
	rest := tasks[1:]

	if debugSearch {
		s.logger.Debug("[Planner] seek", "depth", depth, "task", task.String(), "remaining", len(rest))
	}

	entry, ok := s.registry.Lookup(task.Name)
	if !ok {
		if debugSearch {
			s.logger.Debug("[Planner] unknown task", "task", task.String())
		}
		return nil, false
	}

	switch entry.Kind {
	case domain.KindOperator:
		next := s.applyOperator(entry.Operator, state, task)
		if next == nil {
			return nil, false
		}
		// full slice expression: appends never write into a sibling's prefix
		return s.seekPlan(next, rest, append(plan[:len(plan):len(plan)], task), depth+1)

	case domain.KindMethods:
		for i, method := range entry.Methods {
			subtasks, ok := s.applyMethod(method, state, task)
			if !ok {
				if debugSearch {
					s.logger.Debug("[Planner] method rejected", "task", task.String(), "method", i)
				}
				continue
			}
			expanded := make([]domain.Task, 0, len(subtasks)+len(rest))
			expanded = append(expanded, subtasks...)
			expanded = append(expanded, rest...)
			if result, ok := s.seekPlan(state, expanded, plan, depth+1); ok {
				return result, true
			}
			if s.depthExceeded {
				// the bound is fatal to the whole search, not just this branch
				return nil, false
			}
		}
	}
	return nil, false
}

// applyOperator runs op on a clone of state, recovering panics.
func (s *search) applyOperator(op domain.Operator, state *worldstate.State, task domain.Task) (next *worldstate.State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[Planner] operator invocation failed",
				"error", &InvocationError{Task: task, Value: r})
			next = nil
		}
	}()
	return op(state.Clone(), task.Args...)
}

// applyMethod runs m on a clone of state, recovering panics.
func (s *search) applyMethod(m domain.Method, state *worldstate.State, task domain.Task) (subtasks []domain.Task, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[Planner] method invocation failed",
				"error", &InvocationError{Task: task, Value: r})
			subtasks, ok = nil, false
		}
	}()
	subtasks = m(state.Clone(), task.Args...)
	return subtasks, subtasks != nil
}

// Apply executes plan against a clone of initial, step by step, returning the
// resulting state. It fails with ErrInvalidStep if any step is not a
// registered operator, or its operator signals failure.
func (p *Planner) Apply(initial *worldstate.State, plan Plan) (*worldstate.State, error) {
	if initial == nil {
		return nil, fmt.Errorf("planner: nil initial state")
	}
	s := &search{Planner: p}
	state := initial
	for i, step := range plan {
		op := p.registry.Operator(step.Name)
		if op == nil {
			return nil, fmt.Errorf("%w %d %s: not an operator", ErrInvalidStep, i, step)
		}
		next := s.applyOperator(op, state, step)
		if next == nil {
			return nil, fmt.Errorf("%w %d %s: operator failed", ErrInvalidStep, i, step)
		}
		state = next
	}
	if len(plan) == 0 {
		state = initial.Clone()
	}
	return state, nil
}
