package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/joeycumines/go-htn/internal/worldstate"
)

var (
	// ErrConflictingEntry is returned when a name would be registered as both
	// an operator and a method set.
	ErrConflictingEntry = errors.New("domain: conflicting registry entry")

	// ErrInvalidSignature is returned by DiscoverOperators when nothing on the
	// given value has the operator signature.
	ErrInvalidSignature = errors.New("domain: no operator signature found")
)

var operatorFuncType = reflect.TypeOf((func(*worldstate.State, ...any) *worldstate.State)(nil))

// Registry maps task names to operators and methods. It is populated once,
// when the domain is built, and treated as read-only afterwards. All methods
// are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// RegisterOperator registers op under name, replacing any previous operator of
// that name.
func (r *Registry) RegisterOperator(name string, op Operator) error {
	if op == nil {
		return fmt.Errorf("domain: nil operator %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok && e.Kind != KindOperator {
		return fmt.Errorf("%w: %q is already registered as %s", ErrConflictingEntry, name, e.Kind)
	}
	r.entries[name] = Entry{Kind: KindOperator, Operator: op}
	return nil
}

// RegisterOperators registers every operator in ops. Registration stops at the
// first error.
func (r *Registry) RegisterOperators(ops map[string]Operator) error {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.RegisterOperator(name, ops[name]); err != nil {
			return err
		}
	}
	return nil
}

// DiscoverOperators registers every exported method of v with the signature
//
//	func(*worldstate.State, ...any) *worldstate.State
//
// under its method name, returning how many were registered. Discovery runs
// once; the registry stores the bound method values.
func (r *Registry) DiscoverOperators(v any) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: nil value", ErrInvalidSignature)
	}
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	count := 0
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		bound := rv.Method(i)
		if bound.Type() != operatorFuncType {
			continue
		}
		fn := bound.Interface().(func(*worldstate.State, ...any) *worldstate.State)
		if err := r.RegisterOperator(m.Name, fn); err != nil {
			return count, err
		}
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("%w on %T", ErrInvalidSignature, v)
	}
	return count, nil
}

// RegisterMethods stores the ordered candidate decompositions for taskName.
// Re-registering replaces the previous list; lists are never merged.
func (r *Registry) RegisterMethods(taskName string, methods ...Method) error {
	if len(methods) == 0 {
		return fmt.Errorf("domain: no methods for %q", taskName)
	}
	for i, m := range methods {
		if m == nil {
			return fmt.Errorf("domain: nil method %d for %q", i, taskName)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[taskName]; ok && e.Kind != KindMethods {
		return fmt.Errorf("%w: %q is already registered as %s", ErrConflictingEntry, taskName, e.Kind)
	}
	r.entries[taskName] = Entry{Kind: KindMethods, Methods: append([]Method(nil), methods...)}
	return nil
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// IsOperator reports whether name resolves to a primitive operator.
func (r *Registry) IsOperator(name string) bool {
	e, ok := r.Lookup(name)
	return ok && e.Kind == KindOperator
}

// Operator returns the operator registered under name, or nil.
func (r *Registry) Operator(name string) Operator {
	e, ok := r.Lookup(name)
	if !ok || e.Kind != KindOperator {
		return nil
	}
	return e.Operator
}

// MethodsFor returns the methods for name in registration order, or an empty
// slice.
func (r *Registry) MethodsFor(name string) []Method {
	e, ok := r.Lookup(name)
	if !ok || e.Kind != KindMethods {
		return []Method{}
	}
	return append([]Method(nil), e.Methods...)
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operators returns the sorted names of every registered operator.
func (r *Registry) Operators() []string {
	return r.namesOfKind(KindOperator)
}

// Tasks returns the sorted names of every task with registered methods.
func (r *Registry) Tasks() []string {
	return r.namesOfKind(KindMethods)
}

func (r *Registry) namesOfKind(k Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, e := range r.entries {
		if e.Kind == k {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
