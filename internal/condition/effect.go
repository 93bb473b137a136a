package condition

import (
	"fmt"

	"github.com/expr-lang/expr"
	btmod "github.com/joeycumines/go-htn/internal/bt"
	pabtpkg "github.com/joeycumines/go-pabt"
)

// Effect is a blackboard mutation attached to an operator node. During search
// effects are applied to a scratch layer; at run time they are applied to the
// live blackboard once the operator's action succeeds.
type Effect interface {
	Apply(agent any, bb *btmod.Blackboard) error
	String() string
}

// ApplyAll applies effects in order, stopping at the first error.
func ApplyAll(agent any, bb *btmod.Blackboard, effects []Effect) error {
	for _, e := range effects {
		if err := e.Apply(agent, bb); err != nil {
			return fmt.Errorf("effect %s: %w", e, err)
		}
	}
	return nil
}

// kv is a go-pabt effect: a key-value pair representing a state change.
type kv struct {
	key   any
	value any
}

var _ pabtpkg.Effect = (*kv)(nil)

// NewEffect returns a go-pabt Effect setting key to value.
func NewEffect(key, value any) pabtpkg.Effect {
	return &kv{key: key, value: value}
}

// Key implements pabt.Effect.Key.
func (e *kv) Key() any {
	return e.key
}

// Value implements pabt.Effect.Value.
func (e *kv) Value() any {
	return e.value
}

type set struct {
	e pabtpkg.Effect
}

// Set applies a go-pabt Effect: its value is stored under its normalized key.
func Set(e pabtpkg.Effect) Effect {
	return set{e: e}
}

// SetValue stores value under key.
func SetValue(key string, value any) Effect {
	return Set(NewEffect(key, value))
}

func (s set) Apply(_ any, bb *btmod.Blackboard) error {
	key, err := btmod.NormalizeKey(s.e.Key())
	if err != nil {
		return err
	}
	bb.Set(key, s.e.Value())
	return nil
}

func (s set) String() string {
	return fmt.Sprintf("%v = %v", s.e.Key(), s.e.Value())
}

type del string

// Delete removes key.
func Delete(key string) Effect {
	return del(key)
}

func (d del) Apply(_ any, bb *btmod.Blackboard) error {
	bb.Delete(string(d))
	return nil
}

func (d del) String() string {
	return "delete " + string(d)
}

type exprSet struct {
	key        string
	expression string
}

// ExprSet stores the result of an expr-lang expression under key, evaluated
// in the same environment as Expr, e.g. ExprSet("water", "water - 1").
func ExprSet(key, expression string) Effect {
	if expression == "" {
		panic("condition.ExprSet: expression cannot be empty")
	}
	return exprSet{key: key, expression: expression}
}

func (e exprSet) Apply(agent any, bb *btmod.Blackboard) error {
	program, err := compile(e.expression)
	if err != nil {
		return fmt.Errorf("compile %q: %w", e.expression, err)
	}
	v, err := expr.Run(program, exprEnv(agent, bb))
	if err != nil {
		return fmt.Errorf("evaluate %q: %w", e.expression, err)
	}
	bb.Set(e.key, v)
	return nil
}

func (e exprSet) String() string {
	return e.key + " = " + e.expression
}

type effectFunc struct {
	name string
	fn   func(agent any, bb *btmod.Blackboard) error
}

// EffectFunc wraps a Go function. name is used by String.
func EffectFunc(name string, fn func(agent any, bb *btmod.Blackboard) error) Effect {
	return effectFunc{name: name, fn: fn}
}

func (f effectFunc) Apply(agent any, bb *btmod.Blackboard) error {
	if f.fn == nil {
		return fmt.Errorf("effect %q has no function", f.name)
	}
	return f.fn(agent, bb)
}

func (f effectFunc) String() string {
	return f.name
}
