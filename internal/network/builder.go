// Package network implements the graph planner: PlanBuilder searches a
// finalized graph for a decomposition, TaskNetworkPlan executes the result
// one tick at a time, and Planner arbitrates between the running plan and
// freshly generated candidates using their method traversal records.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	btmod "github.com/joeycumines/go-htn/internal/bt"
	"github.com/joeycumines/go-htn/internal/condition"
	"github.com/joeycumines/go-htn/internal/graph"
)

// DefaultMaxDepth bounds the graph search. Links can form cycles, so the
// bound is what stops a runaway search.
const DefaultMaxDepth = 256

var (
	// ErrNoPlan is returned when the root cannot be decomposed.
	ErrNoPlan = errors.New("network: no plan found")

	// ErrDepthExceeded is joined with ErrNoPlan when a branch hit the depth
	// bound, which usually means a cyclic link.
	ErrDepthExceeded = errors.New("network: max depth exceeded")

	// ErrPlanDiscarded is returned when generation stopped early because any
	// plan it could still find would lose to the running plan, or because
	// the running task cannot be interrupted.
	ErrPlanDiscarded = errors.New("network: plan discarded")

	// ErrMalformedPlan is returned when builder output cannot be assembled
	// into a TaskNetworkPlan. It indicates a bug, not a planning failure.
	ErrMalformedPlan = errors.New("network: malformed plan")
)

// debugSearch enables per-node search tracing. Set HTN_DEBUG_SEARCH=1.
var debugSearch = os.Getenv("HTN_DEBUG_SEARCH") == "1"

// BuilderOption configures a PlanBuilder.
type BuilderOption func(*PlanBuilder)

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(n int) BuilderOption {
	return func(b *PlanBuilder) {
		if n > 0 {
			b.maxDepth = n
		}
	}
}

// WithBuilderLogger sets the logger used for diagnostics.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *PlanBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// PlanBuilder searches a finalized graph for a plan. It holds no per-search
// state, and may be reused.
type PlanBuilder struct {
	maxDepth int
	logger   *slog.Logger
}

// NewPlanBuilder returns a PlanBuilder.
func NewPlanBuilder(opts ...BuilderOption) *PlanBuilder {
	b := &PlanBuilder{
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxDepth returns the configured depth bound.
func (b *PlanBuilder) MaxDepth() int {
	return b.maxDepth
}

// BuildResult is the outcome of a search. On failure only the diagnostic
// fields are populated.
type BuildResult struct {
	// Nodes are the Link and Operator nodes of the plan, in execution order.
	Nodes []*graph.Node
	// Paths holds, for each operator in Nodes, the nodes the search descended
	// through to reach it, root first and the operator last. Entries for
	// links are nil.
	Paths [][]*graph.Node
	MTR   MTR
	// FailedNodes are the nodes whose preconditions or effects failed during
	// the search, in the order they were tried.
	FailedNodes []*graph.Node
	// PlanWasDiscarded is set when the search was cut short by the running
	// plan's priority.
	PlanWasDiscarded bool
	// Expansions counts the nodes visited.
	Expansions int
}

// search carries the bookkeeping of a single Build call.
type search struct {
	*PlanBuilder
	agent   any
	bb      *btmod.Blackboard
	running MTR

	plan          []*graph.Node
	paths         [][]*graph.Node
	path          []*graph.Node
	mtr           MTR
	failed        []*graph.Node
	discarded     bool
	depthExceeded bool
	expansions    int
}

// Build searches root for a plan against a clone of bb; bb itself is never
// modified. When running is a plan still executing, choices that could only
// produce lower priority plans abort the search with ErrPlanDiscarded.
func (b *PlanBuilder) Build(root *graph.Node, agent any, bb *btmod.Blackboard, running *TaskNetworkPlan) (*BuildResult, error) {
	if root == nil {
		return nil, fmt.Errorf("network: nil root")
	}
	if bb == nil {
		bb = btmod.New()
	}
	s := &search{
		PlanBuilder: b,
		agent:       agent,
		bb:          bb.Clone(),
	}
	if running != nil && running.IsRunning() {
		s.running = running.MTR()
	}

	ok := s.searchForPlan(root, 0)
	result := &BuildResult{
		FailedNodes:      s.failed,
		PlanWasDiscarded: s.discarded,
		Expansions:       s.expansions,
	}
	switch {
	case ok:
		result.Nodes = s.plan
		result.Paths = s.paths
		result.MTR = s.mtr
		if debugSearch {
			b.logger.Debug("[PlanBuilder] plan found", "mtr", s.mtr.String(), "nodes", len(s.plan), "expansions", s.expansions)
		}
		return result, nil
	case s.discarded:
		b.logger.Debug("[PlanBuilder] search cut short by the running plan", "running", s.running.String())
		return result, ErrPlanDiscarded
	case s.depthExceeded:
		return result, errors.Join(ErrNoPlan, ErrDepthExceeded)
	default:
		return result, ErrNoPlan
	}
}

func (s *search) searchForPlan(node *graph.Node, depth int) bool {
	if s.discarded {
		return false
	}
	if depth > s.maxDepth {
		if !s.depthExceeded {
			s.logger.Error("[PlanBuilder] search hit the depth bound; check the graph for cyclic links",
				"node", node.String(),
				"maxDepth", s.maxDepth)
		}
		s.depthExceeded = true
		return false
	}
	s.expansions++
	s.path = append(s.path, node)
	defer func() { s.path = s.path[:len(s.path)-1] }()

	if debugSearch {
		s.logger.Debug("[PlanBuilder] visit", "node", node.String(), "depth", depth, "mtr", s.mtr.String())
	}

	if !s.checkPreconditions(node) {
		s.failed = append(s.failed, node)
		return false
	}

	switch node.Kind {
	case graph.KindLink:
		mark := len(s.plan)
		s.plan = append(s.plan, node)
		s.paths = append(s.paths, nil)
		if node.Target == nil || !s.searchForPlan(node.Target, depth+1) {
			s.truncate(mark)
			return false
		}
		return true

	case graph.KindOperator:
		s.bb.Push()
		if !s.applyEffects(node) {
			s.bb.Pop()
			s.failed = append(s.failed, node)
			return false
		}
		s.bb.Commit()
		s.plan = append(s.plan, node)
		s.paths = append(s.paths, slices.Clone(s.path))
		return true

	case graph.KindRoot:
		return s.selectOne(node, depth)

	case graph.KindComposite:
		if node.Mode == graph.SelectAll {
			return s.selectAll(node, depth)
		}
		return s.selectOne(node, depth)

	default:
		s.logger.Error("[PlanBuilder] unknown node kind", "node", node.String())
		return false
	}
}

// selectOne tries each enabled child in order, keeping the first that
// succeeds and recording its index.
func (s *search) selectOne(node *graph.Node, depth int) bool {
	planMark, mtrMark := len(s.plan), len(s.mtr)
	for i, child := range node.Children {
		if !child.Enabled {
			continue
		}
		if s.prune(i) {
			s.discarded = true
			return false
		}
		s.bb.Push()
		s.mtr = append(s.mtr, i)
		if s.searchForPlan(child, depth+1) {
			s.bb.Commit()
			return true
		}
		s.bb.Pop()
		s.truncate(planMark)
		s.mtr = s.mtr[:mtrMark]
		if s.discarded {
			return false
		}
	}
	return false
}

// selectAll requires every enabled child to succeed, in order, rolling back
// everything on the first failure.
func (s *search) selectAll(node *graph.Node, depth int) bool {
	planMark, mtrMark := len(s.plan), len(s.mtr)
	s.bb.Push()
	for _, child := range node.Children {
		if !child.Enabled {
			continue
		}
		if !s.searchForPlan(child, depth+1) {
			s.bb.Pop()
			s.truncate(planMark)
			s.mtr = s.mtr[:mtrMark]
			return false
		}
	}
	s.bb.Commit()
	return true
}

// truncate rolls the plan back to its first n nodes.
func (s *search) truncate(n int) {
	s.plan = s.plan[:n]
	s.paths = s.paths[:n]
}

// prune reports whether choosing child index i at the next choice point can
// only lead to plans of lower priority than the running one. Search order
// matches priority order, so everything after such a choice loses too.
func (s *search) prune(i int) bool {
	if s.running == nil {
		return false
	}
	pos := len(s.mtr)
	if pos >= len(s.running) || !slices.Equal(s.mtr, s.running[:pos]) {
		return false
	}
	return i > s.running[pos]
}

func (s *search) checkPreconditions(node *graph.Node) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[PlanBuilder] precondition panicked", "node", node.String(), "panic", r)
			ok = false
		}
	}()
	failed, err := condition.Check(s.agent, s.bb, node.Preconditions)
	if err != nil {
		s.logger.Warn("[PlanBuilder] precondition evaluation failed", "node", node.String(), "error", err)
		return false
	}
	if failed != nil && debugSearch {
		s.logger.Debug("[PlanBuilder] precondition failed", "node", node.String(), "precondition", failed.String())
	}
	return failed == nil
}

func (s *search) applyEffects(node *graph.Node) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[PlanBuilder] effect panicked", "node", node.String(), "panic", r)
			ok = false
		}
	}()
	if err := condition.ApplyAll(s.agent, s.bb, node.Effects); err != nil {
		s.logger.Debug("[PlanBuilder] effect failed", "node", node.String(), "error", err)
		return false
	}
	return true
}
