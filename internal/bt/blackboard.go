// Package bt provides the Blackboard, the key-value store the graph planner
// searches against and the executing plan writes to.
//
// The search never touches a live blackboard: it works on a Clone, and uses
// Push, Commit and Pop to scope the simulated effects of each decomposition
// branch, so a failed branch leaves no trace.
package bt

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/dop251/goja"
)

// debugBlackboard traces Variable lookups. Set HTN_DEBUG_SEARCH=1.
var debugBlackboard = os.Getenv("HTN_DEBUG_SEARCH") == "1"

// Blackboard provides a thread-safe key-value store for planner state.
//
// Usage: Create with new(Blackboard) or New. The internal map is lazily
// initialized on the first write operation via the init() method.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
	// saved holds one snapshot per open scope, innermost last.
	saved []map[string]any
}

// New returns an empty blackboard.
func New() *Blackboard {
	return &Blackboard{data: make(map[string]any)}
}

// FromMap returns a blackboard holding a shallow copy of values.
func FromMap(values map[string]any) *Blackboard {
	b := New()
	for k, v := range values {
		b.data[k] = v
	}
	return b
}

// init initializes the blackboard's internal map if needed.
// Must be called with the write lock held.
func (b *Blackboard) init() {
	if b.data == nil {
		b.data = make(map[string]any)
	}
}

// Get retrieves a value from the blackboard.
// Returns nil if the key doesn't exist.
func (b *Blackboard) Get(key string) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	return b.data[key]
}

// Lookup is Get, also reporting whether the key exists.
func (b *Blackboard) Lookup(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil, false
	}
	v, ok := b.data[key]
	return v, ok
}

// Set stores a value in the blackboard.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

// Has returns true if the key exists in the blackboard.
func (b *Blackboard) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return false
	}
	_, ok := b.data[key]
	return ok
}

// Delete removes a key from the blackboard.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return
	}
	delete(b.data, key)
}

// Keys returns all keys in the blackboard, sorted.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clear removes all entries from the blackboard. Open scopes are kept, so a
// Pop still restores what was there before the Clear.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]any)
}

// Len returns the number of keys in the blackboard.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the blackboard data.
//
// WARNING: This is a SHALLOW copy. Mutable values (slices, maps, pointers)
// are shared with the blackboard.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	return copyMap(b.data)
}

// Clone returns an independent blackboard with the same (shallow-copied)
// contents and no open scopes.
func (b *Blackboard) Clone() *Blackboard {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &Blackboard{data: copyMap(b.data)}
}

// Push opens a scope. Writes made until the matching Commit or Pop are
// kept or discarded as a unit.
func (b *Blackboard) Push() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.saved = append(b.saved, copyMap(b.data))
}

// Commit closes the innermost scope, keeping its writes. They become part of
// the enclosing scope, if any.
func (b *Blackboard) Commit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.saved) == 0 {
		panic("bt.Blackboard: Commit without Push")
	}
	b.saved[len(b.saved)-1] = nil
	b.saved = b.saved[:len(b.saved)-1]
}

// Pop closes the innermost scope, discarding its writes.
func (b *Blackboard) Pop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.saved) == 0 {
		panic("bt.Blackboard: Pop without Push")
	}
	b.data = b.saved[len(b.saved)-1]
	b.saved[len(b.saved)-1] = nil
	b.saved = b.saved[:len(b.saved)-1]
}

// Depth returns the number of open scopes.
func (b *Blackboard) Depth() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.saved)
}

// Variable resolves a go-pabt condition key against the blackboard.
//
// It normalizes the key to a string for blackboard lookup.
// Returns (nil, nil) if key doesn't exist (pabt semantics).
func (b *Blackboard) Variable(key any) (any, error) {
	keyStr, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	value := b.Get(keyStr)
	if debugBlackboard {
		slog.Debug("[Blackboard] Variable", "key", keyStr, "value", value, "type", fmt.Sprintf("%T", value))
	}
	return value, nil
}

// NormalizeKey converts a condition or effect key to its blackboard form.
func NormalizeKey(key any) (string, error) {
	switch k := key.(type) {
	case nil:
		return "", fmt.Errorf("variable key cannot be nil")
	case string:
		return k, nil
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", k), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", k), nil
	case float32, float64:
		return fmt.Sprintf("%f", k), nil
	case fmt.Stringer:
		return k.String(), nil
	default:
		return "", fmt.Errorf("unsupported key type: %T", key)
	}
}

// ExposeToJS creates a read-only JavaScript view of this blackboard, for
// condition scripts:
//
//	bb.get("key")
//	bb.has("key")
//	bb.keys()
//	bb.len()
func (b *Blackboard) ExposeToJS(vm *goja.Runtime) goja.Value {
	obj := vm.NewObject()
	// Set cannot fail for these keys.
	_ = obj.Set("get", b.Get)
	_ = obj.Set("has", b.Has)
	_ = obj.Set("keys", b.Keys)
	_ = obj.Set("len", b.Len)
	return obj
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
