package network

import (
	"fmt"
	"sort"
	"sync"

	bt "github.com/joeycumines/go-behaviortree"
	btmod "github.com/joeycumines/go-htn/internal/bt"
	"github.com/joeycumines/go-htn/internal/graph"
)

// Status is the execution state of a task or plan.
type Status int

const (
	Running Status = iota + 1
	Succeeded
	Failed
	// Breakpoint is reported once, on a task's first tick, for nodes marked
	// WithBreakpoint. It is scheduled exactly like Running.
	Breakpoint
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Breakpoint:
		return "breakpoint"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == Succeeded || s == Failed
}

// Action is the resumable body of an operator. Poll is called once per tick
// until it returns Succeeded or Failed; progress between polls lives on the
// Action value itself.
type Action interface {
	Poll(agent any, bb *btmod.Blackboard) Status
}

// ActionFunc adapts a function to Action.
type ActionFunc func(agent any, bb *btmod.Blackboard) Status

// Poll implements Action.
func (f ActionFunc) Poll(agent any, bb *btmod.Blackboard) Status {
	return f(agent, bb)
}

// ActionFactory creates a fresh Action for every task that runs it, so no
// progress is ever shared between plans.
type ActionFactory func() Action

// FromNode adapts a go-behaviortree node: Running, Success and Failure map
// to Running, Succeeded and Failed, and a tick error fails the action.
func FromNode(node bt.Node) Action {
	return ActionFunc(func(any, *btmod.Blackboard) Status {
		if node == nil {
			return Failed
		}
		status, err := node.Tick()
		if err != nil {
			return Failed
		}
		switch status {
		case bt.Running:
			return Running
		case bt.Success:
			return Succeeded
		default:
			return Failed
		}
	})
}

// Library maps action names to factories. It is safe for concurrent use,
// and satisfies graph.ActionLibrary.
type Library struct {
	mu        sync.RWMutex
	factories map[string]ActionFactory
}

var _ graph.ActionLibrary = (*Library)(nil)

// NewLibrary creates a new empty action library.
func NewLibrary() *Library {
	return &Library{factories: make(map[string]ActionFactory)}
}

// Register adds a factory under name, replacing any previous one.
func (l *Library) Register(name string, factory ActionFactory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[name] = factory
}

// RegisterFunc registers an ActionFunc that keeps no progress of its own.
func (l *Library) RegisterFunc(name string, fn ActionFunc) {
	l.Register(name, func() Action { return fn })
}

// Has reports whether name is registered.
func (l *Library) Has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.factories[name]
	return ok
}

// New instantiates the named action. It returns nil if name is unknown or
// the factory produced nothing.
func (l *Library) New(name string) Action {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	factory := l.factories[name]
	l.mu.RUnlock()
	if factory == nil {
		return nil
	}
	return factory()
}

// Names returns the registered names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
