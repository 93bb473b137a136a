package graph

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/joeycumines/go-htn/internal/condition"
	"gopkg.in/yaml.v3"
)

// ActionLibrary reports which action names can be executed. The loader
// rejects operators naming unknown actions.
type ActionLibrary interface {
	Has(action string) bool
}

// document is the YAML form of a network:
//
//	name: firefighter
//	root:
//	  select:
//	    - name: Extinguish
//	      when: ["fireVisible == true"]
//	      sequence:
//	        - operator: goto-fire
//	          effects: {atFire: true}
//	        - operator: spray
//	          effects: {fireVisible: false}
//	    - name: Patrol
//	      operator: wander
//	      notInterruptable: true
type document struct {
	Name string   `yaml:"name"`
	Root nodeSpec `yaml:"root"`
}

// nodeSpec is one node; exactly one of select, sequence, operator or link
// must be set.
type nodeSpec struct {
	Name             string            `yaml:"name"`
	Display          string            `yaml:"display"`
	When             []string          `yaml:"when"`
	Script           []string          `yaml:"script"`
	Select           []nodeSpec        `yaml:"select"`
	Sequence         []nodeSpec        `yaml:"sequence"`
	Operator         string            `yaml:"operator"`
	Link             string            `yaml:"link"`
	Effects          map[string]any    `yaml:"effects"`
	Compute          map[string]string `yaml:"compute"`
	Delete           []string          `yaml:"delete"`
	Disabled         bool              `yaml:"disabled"`
	NotInterruptable bool              `yaml:"notInterruptable"`
	Breakpoint       bool              `yaml:"breakpoint"`
}

type loader struct {
	lib   ActionLibrary
	named map[string][]*Node
	links map[*Node]string
}

// Load decodes a YAML network, builds and finalizes it. when entries are
// expr-lang expressions and script entries are goja JavaScript; both are
// compiled during loading. effects set literal values, compute sets
// expr-lang results, delete removes keys. A nil lib skips action checks.
func Load(r io.Reader, lib ActionLibrary) (*Node, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidGraph)
		}
		return nil, fmt.Errorf("decode graph: %w", err)
	}

	l := &loader{
		lib:   lib,
		named: make(map[string][]*Node),
		links: make(map[*Node]string),
	}

	if doc.Root.Operator != "" || doc.Root.Link != "" || doc.Root.Sequence != nil ||
		doc.Root.Effects != nil || doc.Root.Compute != nil || doc.Root.Delete != nil {
		return nil, fmt.Errorf("%w: root must be a select", ErrInvalidGraph)
	}
	name := doc.Root.Name
	if name == "" {
		name = doc.Name
	}
	if name == "" {
		name = "root"
	}
	children, err := l.buildAll(doc.Root.Select, "root")
	if err != nil {
		return nil, err
	}
	root := NewRoot(name, children...)
	if err := l.decorate(root, doc.Root, "root"); err != nil {
		return nil, err
	}

	for link, target := range l.links {
		nodes := l.named[target]
		switch len(nodes) {
		case 0:
			return nil, fmt.Errorf("%w: link %q targets unknown node %q", ErrInvalidGraph, link.Name, target)
		case 1:
			link.Target = nodes[0]
		default:
			return nil, fmt.Errorf("%w: link %q target %q is ambiguous", ErrInvalidGraph, link.Name, target)
		}
	}

	if err := Finalize(root); err != nil {
		return nil, err
	}
	return root, nil
}

// LoadFile is Load reading from path.
func LoadFile(path string, lib ActionLibrary) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()
	return Load(f, lib)
}

func (l *loader) buildAll(specs []nodeSpec, where string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(specs))
	for i, spec := range specs {
		n, err := l.build(spec, fmt.Sprintf("%s/%d", where, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (l *loader) build(spec nodeSpec, where string) (*Node, error) {
	set := 0
	for _, ok := range []bool{spec.Select != nil, spec.Sequence != nil, spec.Operator != "", spec.Link != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: %s: exactly one of select, sequence, operator, link is required", ErrInvalidGraph, where)
	}

	var n *Node
	switch {
	case spec.Operator != "":
		if l.lib != nil && !l.lib.Has(spec.Operator) {
			return nil, fmt.Errorf("%w: %s: unknown action %q", ErrInvalidGraph, where, spec.Operator)
		}
		name := spec.Name
		if name == "" {
			name = spec.Operator
		}
		n = NewOperator(name, spec.Operator)
	case spec.Link != "":
		name := spec.Name
		if name == "" {
			name = "link:" + spec.Link
		}
		n = NewLink(name, nil)
		l.links[n] = spec.Link
	default:
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: %s: composite nodes must be named", ErrInvalidGraph, where)
		}
		mode := SelectOne
		childSpecs := spec.Select
		if spec.Sequence != nil {
			mode = SelectAll
			childSpecs = spec.Sequence
		}
		children, err := l.buildAll(childSpecs, where+"/"+spec.Name)
		if err != nil {
			return nil, err
		}
		n = newNode(spec.Name, KindComposite, mode, children)
	}

	if n.Kind != KindOperator && (spec.Effects != nil || spec.Compute != nil || spec.Delete != nil) {
		return nil, fmt.Errorf("%w: %s: only operators have effects", ErrInvalidGraph, where)
	}
	if err := l.decorate(n, spec, where); err != nil {
		return nil, err
	}
	return n, nil
}

// decorate applies the fields shared by every kind.
func (l *loader) decorate(n *Node, spec nodeSpec, where string) error {
	l.named[n.Name] = append(l.named[n.Name], n)
	if spec.Display != "" {
		n.Display(spec.Display)
	}
	for _, src := range spec.When {
		if src == "" {
			return fmt.Errorf("%w: %s: empty when", ErrInvalidGraph, where)
		}
		c := condition.Expr(src)
		if err := c.Compile(); err != nil {
			return fmt.Errorf("%w: %s: when %q: %w", ErrInvalidGraph, where, src, err)
		}
		n.When(c)
	}
	for _, src := range spec.Script {
		if src == "" {
			return fmt.Errorf("%w: %s: empty script", ErrInvalidGraph, where)
		}
		c := condition.Script(src)
		if err := c.Compile(); err != nil {
			return fmt.Errorf("%w: %s: script: %w", ErrInvalidGraph, where, err)
		}
		n.When(c)
	}
	for _, key := range sortedKeys(spec.Effects) {
		n.WithEffects(condition.SetValue(key, spec.Effects[key]))
	}
	for _, key := range sortedKeys(spec.Compute) {
		src := spec.Compute[key]
		if src == "" {
			return fmt.Errorf("%w: %s: compute %q is empty", ErrInvalidGraph, where, key)
		}
		n.WithEffects(condition.ExprSet(key, src))
	}
	for _, key := range spec.Delete {
		n.WithEffects(condition.Delete(key))
	}
	if spec.Disabled {
		n.Disabled()
	}
	if spec.NotInterruptable {
		n.NonInterruptable()
	}
	if spec.Breakpoint {
		n.WithBreakpoint()
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
