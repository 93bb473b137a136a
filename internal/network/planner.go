package network

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	bt "github.com/joeycumines/go-behaviortree"
	btmod "github.com/joeycumines/go-htn/internal/bt"
	"github.com/joeycumines/go-htn/internal/graph"
)

// Option configures a Planner.
type Option func(*Planner)

// WithReplanInterval sets how often, in ticks, a candidate plan is
// generated while a plan is running. The default 1 replans every tick. A
// planner without a plan always tries to generate one.
func WithReplanInterval(ticks int) Option {
	return func(p *Planner) {
		if ticks > 0 {
			p.replanInterval = ticks
		}
	}
}

// WithBuilder sets the PlanBuilder.
func WithBuilder(b *PlanBuilder) Option {
	return func(p *Planner) {
		if b != nil {
			p.builder = b
		}
	}
}

// WithLibrary sets the library actions are instantiated from.
func WithLibrary(lib *Library) Option {
	return func(p *Planner) {
		p.library = lib
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOnPlanChanged registers a callback invoked, during Tick, whenever the
// current plan changes: when a plan is installed (old may be nil), preempted,
// or cleared after finishing (next is nil). fn runs with the Planner locked,
// and must not call back into it.
func WithOnPlanChanged(fn func(old, next *TaskNetworkPlan)) Option {
	return func(p *Planner) {
		p.onPlanChanged = fn
	}
}

// Stats counts control loop events.
type Stats struct {
	Ticks     int
	Generated int
	Discarded int
	NoPlan    int
	Replaced  int
	Succeeded int
	Failed    int
}

// Planner is the replanning control loop around a graph. Each Tick it may
// generate a candidate plan, swaps it in if it outranks the running plan,
// then advances the running plan. Planner is safe for concurrent use; ticks
// are serialized.
type Planner struct {
	mu sync.Mutex

	root  *graph.Node
	agent any
	bb    *btmod.Blackboard

	builder        *PlanBuilder
	library        *Library
	replanInterval int
	logger         *slog.Logger
	onPlanChanged  func(old, next *TaskNetworkPlan)

	current *TaskNetworkPlan
	stats   Stats
}

// NewPlanner returns a Planner for a finalized graph, executing against the
// live blackboard bb.
func NewPlanner(root *graph.Node, agent any, bb *btmod.Blackboard, opts ...Option) *Planner {
	if root == nil {
		panic("network.NewPlanner: root cannot be nil")
	}
	if bb == nil {
		bb = btmod.New()
	}
	p := &Planner{
		root:           root,
		agent:          agent,
		bb:             bb,
		replanInterval: 1,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.builder == nil {
		p.builder = NewPlanBuilder(WithBuilderLogger(p.logger))
	}
	return p
}

// Blackboard returns the live blackboard.
func (p *Planner) Blackboard() *btmod.Blackboard {
	return p.bb
}

// GeneratePlan searches for a candidate plan, using the running plan to cut
// the search short. While the running task is not interruptable and has
// started, no search is attempted, and ErrPlanDiscarded is returned.
func (p *Planner) GeneratePlan() (*TaskNetworkPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generatePlan()
}

func (p *Planner) generatePlan() (*TaskNetworkPlan, error) {
	if p.current != nil && p.current.IsRunning() {
		if task := p.current.CurrentTask(); task != nil && task.NotInterruptable() && task.Started() && task.Status() == Running {
			p.stats.Discarded++
			if debugSearch {
				p.logger.Debug("[Planner] running task is not interruptable", "task", task.String())
			}
			return nil, fmt.Errorf("%w: %s is not interruptable", ErrPlanDiscarded, task)
		}
	}

	result, err := p.builder.Build(p.root, p.agent, p.bb, p.current)
	if err != nil {
		if errors.Is(err, ErrPlanDiscarded) {
			p.stats.Discarded++
		} else {
			p.stats.NoPlan++
		}
		return nil, err
	}
	plan, err := NewTaskNetworkPlan(result, p.library, p.logger)
	if err != nil {
		p.logger.Error("[Planner] could not assemble plan", "error", err)
		return nil, err
	}
	p.stats.Generated++
	return plan, nil
}

// Tick runs one control loop iteration and returns the running plan's
// status, or Failed when there is no plan to run. A plan that finishes is
// cleared, so the next tick plans afresh.
func (p *Planner) Tick() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Ticks++
	if p.current == nil || (p.stats.Ticks-1)%p.replanInterval == 0 {
		candidate, err := p.generatePlan()
		switch {
		case err != nil:
			if errors.Is(err, ErrMalformedPlan) {
				p.logger.Error("[Planner] plan generation failed", "error", err)
			}
		case p.current == nil || IsHigherPriority(candidate, p.current):
			if p.current != nil {
				p.stats.Replaced++
				p.logger.Info("[Planner] preempting running plan",
					"from", p.current.MTR().String(),
					"to", candidate.MTR().String())
			}
			p.setPlan(candidate)
		}
	}

	if p.current == nil {
		return Failed
	}
	status := p.current.Tick(p.agent, p.bb)
	switch status {
	case Succeeded:
		p.stats.Succeeded++
		p.logger.Debug("[Planner] plan succeeded", "plan", p.current.String())
		p.setPlan(nil)
	case Failed:
		p.stats.Failed++
		p.logger.Info("[Planner] plan failed", "plan", p.current.String())
		p.setPlan(nil)
	}
	return status
}

func (p *Planner) setPlan(plan *TaskNetworkPlan) {
	old := p.current
	p.current = plan
	if p.onPlanChanged != nil && old != plan {
		p.onPlanChanged(old, plan)
	}
}

// CurrentPlan returns the running plan, or nil.
func (p *Planner) CurrentPlan() *TaskNetworkPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SetPlan replaces the running plan without any priority check.
func (p *Planner) SetPlan(plan *TaskNetworkPlan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setPlan(plan)
}

// ClearPlan abandons the running plan. Its in-flight action is not
// signalled.
func (p *Planner) ClearPlan() {
	p.SetPlan(nil)
}

// Stats returns a copy of the counters.
func (p *Planner) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Node exposes Tick as a go-behaviortree node: Succeeded maps to Success,
// Failed to Failure, anything else to Running.
func (p *Planner) Node() bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		switch p.Tick() {
		case Succeeded:
			return bt.Success, nil
		case Failed:
			return bt.Failure, nil
		default:
			return bt.Running, nil
		}
	})
}
