package condition

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	btmod "github.com/joeycumines/go-htn/internal/bt"
)

// DefaultExprCacheSize is the default maximum number of compiled programs
// kept by the expression cache.
const DefaultExprCacheSize = 1000

// ErrNonBoolean is returned when a condition expression does not evaluate to
// a bool.
var ErrNonBoolean = errors.New("condition: expression returned non-boolean result")

// exprCache holds compiled programs keyed by source, shared by Expr and
// ExprSet.
var exprCache = NewExprLRUCache(DefaultExprCacheSize)

// SetExprCacheSize sets the maximum size of the expression cache, evicting
// immediately if it shrinks. Values below 1 are treated as 1.
func SetExprCacheSize(size int) {
	exprCache.Resize(size)
}

// ExprCacheStats reports the shared expression cache statistics.
func ExprCacheStats() CacheStats {
	return exprCache.Stats()
}

// ClearExprCache empties the shared expression cache.
func ClearExprCache() {
	exprCache.Clear()
}

// ExprLRUCache is a thread-safe LRU cache for expr-lang compiled programs.
type ExprLRUCache struct {
	mu        sync.Mutex
	cache     map[string]*list.Element
	lru       *list.List
	maxSize   int
	hitCount  int64
	missCount int64
}

// CacheStats is a point-in-time view of an ExprLRUCache.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
}

// Ratio is the hit ratio, 0 when the cache was never queried.
func (s CacheStats) Ratio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s CacheStats) String() string {
	return fmt.Sprintf("ExprLRUCache{size=%d/%d, hits=%d, misses=%d, hit_ratio=%.2f%%}",
		s.Size, s.MaxSize, s.Hits, s.Misses, s.Ratio()*100)
}

// NewExprLRUCache creates a new LRU cache with the specified maximum size.
func NewExprLRUCache(maxSize int) *ExprLRUCache {
	if maxSize < 1 {
		maxSize = DefaultExprCacheSize
	}
	return &ExprLRUCache{
		cache:   make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

type cacheEntry struct {
	expression string
	program    *vm.Program
}

// Get retrieves a compiled program, marking it most recently used.
func (c *ExprLRUCache) Get(expression string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.cache[expression]
	if !ok {
		c.missCount++
		return nil, false
	}
	c.hitCount++
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).program, true
}

// Put adds or replaces a compiled program, evicting the least recently used
// entry when over capacity.
func (c *ExprLRUCache) Put(expression string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[expression]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).program = program
		return
	}
	c.cache[expression] = c.lru.PushFront(&cacheEntry{expression: expression, program: program})
	c.evict()
}

// Resize changes the maximum size of the cache.
func (c *ExprLRUCache) Resize(maxSize int) {
	if maxSize < 1 {
		maxSize = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = maxSize
	c.evict()
}

func (c *ExprLRUCache) evict() {
	for c.lru.Len() > c.maxSize {
		elem := c.lru.Back()
		delete(c.cache, elem.Value.(*cacheEntry).expression)
		c.lru.Remove(elem)
	}
}

// Clear removes all entries and resets the counters.
func (c *ExprLRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lru.Init()
	c.hitCount, c.missCount = 0, 0
}

// Len returns the current number of entries in the cache.
func (c *ExprLRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns cache statistics for monitoring.
func (c *ExprLRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: c.lru.Len(), MaxSize: c.maxSize, Hits: c.hitCount, Misses: c.missCount}
}

// compile returns the cached program for expression, compiling on a miss.
// Programs are compiled against an open environment, so the same program
// serves every blackboard.
func compile(expression string) (*vm.Program, error) {
	if program, ok := exprCache.Get(expression); ok {
		return program, nil
	}
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	exprCache.Put(expression, program)
	return program, nil
}

// exprEnv builds the evaluation environment: every blackboard key at top
// level, plus "bb" (the whole snapshot) and "agent".
func exprEnv(agent any, bb *btmod.Blackboard) map[string]any {
	snapshot := bb.Snapshot()
	env := make(map[string]any, len(snapshot)+2)
	for k, v := range snapshot {
		env[k] = v
	}
	env["bb"] = snapshot
	env["agent"] = agent
	return env
}

// ExprCondition is a Precondition evaluated by expr-lang, natively in Go.
type ExprCondition struct {
	expression string
}

// Expr returns a precondition for an expr-lang expression, e.g.
//
//	fireVisible == true && water > 0
//	bb.position != "hq"
//	agent.Name == "unit-1"
//
// Blackboard keys that are not valid identifiers are reachable via
// bb["some-key"]. Undefined variables evaluate to nil. The expression is
// compiled on first use, and the program is cached by source.
//
// Panics if expression is empty.
func Expr(expression string) *ExprCondition {
	if expression == "" {
		panic("condition.Expr: expression cannot be empty")
	}
	return &ExprCondition{expression: expression}
}

// Compile compiles (or fetches from cache) the expression, so syntax errors
// surface at load time rather than during search.
func (c *ExprCondition) Compile() error {
	_, err := compile(c.expression)
	return err
}

func (c *ExprCondition) Evaluate(agent any, bb *btmod.Blackboard) (bool, error) {
	program, err := compile(c.expression)
	if err != nil {
		return false, fmt.Errorf("compile %q: %w", c.expression, err)
	}
	result, err := expr.Run(program, exprEnv(agent, bb))
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", c.expression, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q gave %T", ErrNonBoolean, c.expression, result)
	}
	return b, nil
}

func (c *ExprCondition) String() string {
	return c.expression
}
