package condition

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
	btmod "github.com/joeycumines/go-htn/internal/bt"
)

// ScriptCondition is a Precondition written as a JavaScript expression and
// run by goja. goja.Runtime is not thread-safe, so every evaluation gets a
// fresh runtime; only the compiled program is shared.
type ScriptCondition struct {
	source string

	once    sync.Once
	program *goja.Program
	err     error
}

// Script returns a precondition for a JavaScript expression. The globals
// "bb" (a read-only view: get, has, keys, len) and "agent" are bound, e.g.
//
//	bb.get("water") > 0 && !bb.has("injured")
//
// The result is converted with ToBoolean.
//
// Panics if source is empty.
func Script(source string) *ScriptCondition {
	if source == "" {
		panic("condition.Script: source cannot be empty")
	}
	return &ScriptCondition{source: source}
}

// Compile parses the script, so syntax errors surface at load time.
func (c *ScriptCondition) Compile() error {
	c.once.Do(func() {
		c.program, c.err = goja.Compile("condition", c.source, false)
	})
	return c.err
}

func (c *ScriptCondition) Evaluate(agent any, bb *btmod.Blackboard) (bool, error) {
	if err := c.Compile(); err != nil {
		return false, fmt.Errorf("compile script: %w", err)
	}
	vm := goja.New()
	if err := vm.Set("bb", bb.ExposeToJS(vm)); err != nil {
		return false, err
	}
	if err := vm.Set("agent", agent); err != nil {
		return false, err
	}
	v, err := vm.RunProgram(c.program)
	if err != nil {
		return false, fmt.Errorf("run script: %w", err)
	}
	return v.ToBoolean(), nil
}

func (c *ScriptCondition) String() string {
	return "js(" + c.source + ")"
}
