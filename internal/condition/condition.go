// Package condition provides the preconditions and effects attached to graph
// nodes, evaluated against an agent and a blackboard.
//
// Several evaluation modes are available:
//   - Key wraps a go-pabt Condition, matched against one blackboard variable
//   - Expr compiles an expr-lang expression natively in Go (cached)
//   - Script runs a goja JavaScript expression
//   - Func calls a Go function directly
//
// Prefer Expr over Script for simple comparisons: it makes zero goja calls.
package condition

import (
	"fmt"
	"reflect"
	"strings"

	btmod "github.com/joeycumines/go-htn/internal/bt"
	pabtpkg "github.com/joeycumines/go-pabt"
)

// Precondition is a predicate over (agent, blackboard) gating whether a node
// may be used in a plan. An error means the predicate could not be evaluated;
// callers treat it as not holding.
type Precondition interface {
	Evaluate(agent any, bb *btmod.Blackboard) (bool, error)
	String() string
}

// Check evaluates ps in order and returns the first one that does not hold,
// along with its evaluation error, if any. It returns (nil, nil) when every
// precondition holds.
func Check(agent any, bb *btmod.Blackboard, ps []Precondition) (Precondition, error) {
	for _, p := range ps {
		ok, err := p.Evaluate(agent, bb)
		if err != nil {
			return p, fmt.Errorf("%s: %w", p, err)
		}
		if !ok {
			return p, nil
		}
	}
	return nil, nil
}

// cond is a go-pabt condition built from a key and a match function.
type cond struct {
	key   any
	match func(value any) bool
	desc  string
}

var _ pabtpkg.Condition = (*cond)(nil)

// NewCondition returns a go-pabt Condition matching the value stored under
// key. desc is used by String.
func NewCondition(key any, desc string, match func(value any) bool) pabtpkg.Condition {
	return &cond{key: key, match: match, desc: desc}
}

// Key implements pabt.Condition.Key.
func (c *cond) Key() any {
	return c.key
}

// Match implements pabt.Condition.Match.
func (c *cond) Match(value any) bool {
	if c.match == nil {
		return false
	}
	return c.match(value)
}

func (c *cond) String() string {
	return c.desc
}

// keyed adapts a go-pabt Condition to a Precondition.
type keyed struct {
	c pabtpkg.Condition
}

// Key returns a Precondition that resolves c.Key() through
// Blackboard.Variable and passes the value to c.Match.
func Key(c pabtpkg.Condition) Precondition {
	return keyed{c: c}
}

func (k keyed) Evaluate(_ any, bb *btmod.Blackboard) (bool, error) {
	v, err := bb.Variable(k.c.Key())
	if err != nil {
		return false, err
	}
	return k.c.Match(v), nil
}

func (k keyed) String() string {
	if s, ok := k.c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("match(%v)", k.c.Key())
}

// Equal holds when the value under key deeply equals expected.
func Equal(key string, expected any) Precondition {
	return Key(NewCondition(key, fmt.Sprintf("%s == %v", key, expected), func(value any) bool {
		return reflect.DeepEqual(value, expected)
	}))
}

// NotNil holds when key has a non-nil value.
func NotNil(key string) Precondition {
	return Key(NewCondition(key, key+" != nil", func(value any) bool {
		return value != nil
	}))
}

// Nil holds when key is absent or nil.
func Nil(key string) Precondition {
	return Key(NewCondition(key, key+" == nil", func(value any) bool {
		return value == nil
	}))
}

type funcCond struct {
	name string
	fn   func(agent any, bb *btmod.Blackboard) bool
}

// Func wraps a Go predicate. name is used by String.
func Func(name string, fn func(agent any, bb *btmod.Blackboard) bool) Precondition {
	return funcCond{name: name, fn: fn}
}

func (f funcCond) Evaluate(agent any, bb *btmod.Blackboard) (bool, error) {
	if f.fn == nil {
		return false, fmt.Errorf("condition %q has no function", f.name)
	}
	return f.fn(agent, bb), nil
}

func (f funcCond) String() string {
	return f.name
}

type all []Precondition

// All holds when every p holds, evaluated in order. All() holds.
func All(ps ...Precondition) Precondition {
	return all(ps)
}

func (a all) Evaluate(agent any, bb *btmod.Blackboard) (bool, error) {
	failed, err := Check(agent, bb, a)
	return failed == nil, err
}

func (a all) String() string {
	return join(a, " && ")
}

type anyOf []Precondition

// Any holds when at least one p holds. Any() does not hold. Evaluation
// errors are returned only if no p holds.
func Any(ps ...Precondition) Precondition {
	return anyOf(ps)
}

func (a anyOf) Evaluate(agent any, bb *btmod.Blackboard) (bool, error) {
	var firstErr error
	for _, p := range a {
		ok, err := p.Evaluate(agent, bb)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, firstErr
}

func (a anyOf) String() string {
	return join(a, " || ")
}

type not struct {
	p Precondition
}

// Not negates p. Errors are propagated, not negated.
func Not(p Precondition) Precondition {
	return not{p: p}
}

func (n not) Evaluate(agent any, bb *btmod.Blackboard) (bool, error) {
	ok, err := n.p.Evaluate(agent, bb)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (n not) String() string {
	return "!(" + n.p.String() + ")"
}

func join(ps []Precondition, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
