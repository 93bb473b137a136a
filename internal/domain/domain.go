// Package domain defines HTN tasks, operators and methods, and the registry
// that maps task names to them.
//
// A task name resolves to exactly one registry Entry, which is either a single
// primitive Operator or an ordered list of decomposition Methods. Entries are
// resolved at registration time, so the planner never dispatches on anything
// other than a map lookup.
package domain

import (
	"fmt"
	"strings"

	"github.com/joeycumines/go-htn/internal/worldstate"
)

// Task is a named operation with ordered parameters, e.g. MoveTo(room3).
type Task struct {
	Name string
	Args []any
}

// NewTask is a convenience constructor.
func NewTask(name string, args ...any) Task {
	return Task{Name: name, Args: args}
}

// String renders the task as (Name, arg1, arg2).
func (t Task) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(t.Name)
	for _, arg := range t.Args {
		b.WriteString(", ")
		_, _ = fmt.Fprint(&b, arg)
	}
	b.WriteString(")")
	return b.String()
}

// Operator is a primitive, state-mutating action.
//
// The state passed in is a private copy owned by the call: the operator may
// mutate and return it. A nil return signals that the operator does not apply.
// Operators must not panic for expected failure.
type Operator func(state *worldstate.State, args ...any) *worldstate.State

// Method decomposes a non-primitive task into an ordered list of subtasks.
//
// The state passed in is a private copy, and must be treated as read-only. A
// nil return signals failure; a non-nil empty slice is a successful
// decomposition into nothing.
type Method func(state *worldstate.State, args ...any) []Task

// Kind tags a registry Entry.
type Kind int

const (
	// KindOperator marks an entry resolving to a primitive Operator.
	KindOperator Kind = iota + 1
	// KindMethods marks an entry resolving to decomposition Methods.
	KindMethods
)

func (k Kind) String() string {
	switch k {
	case KindOperator:
		return "operator"
	case KindMethods:
		return "methods"
	default:
		return "unknown"
	}
}

// Entry is the tagged union stored per task name.
type Entry struct {
	Kind     Kind
	Operator Operator
	Methods  []Method
}

// StringArg returns args[i] as a string, and false if it is missing or not a
// string. It is a helper for operator and method implementations.
func StringArg(args []any, i int) (string, bool) {
	if i < 0 || i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}
