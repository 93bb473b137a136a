package network

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	btmod "github.com/joeycumines/go-htn/internal/bt"
	"github.com/joeycumines/go-htn/internal/condition"
	"github.com/joeycumines/go-htn/internal/graph"
)

// PlannerTask executes one operator node of a plan.
type PlannerTask struct {
	node          *graph.Node
	preconditions []condition.Precondition
	action        Action
	status        Status
	started       bool
	logger        *slog.Logger
}

// Node returns the operator node.
func (t *PlannerTask) Node() *graph.Node {
	return t.node
}

// Preconditions returns the consolidated preconditions: those of every node
// on the path the search took to the operator, root first, then its own.
func (t *PlannerTask) Preconditions() []condition.Precondition {
	return t.preconditions
}

// Status returns the last status. A task that has not been ticked is
// Running.
func (t *PlannerTask) Status() Status {
	return t.status
}

// Started reports whether the task has been ticked.
func (t *PlannerTask) Started() bool {
	return t.started
}

// NotInterruptable reports whether the task blocks replanning while it runs.
func (t *PlannerTask) NotInterruptable() bool {
	return t.node.NotInterruptable
}

func (t *PlannerTask) String() string {
	return t.node.Label()
}

// Tick advances the task by one step against the live blackboard.
//
// The first tick revalidates the consolidated preconditions, since the world
// may have changed since planning; a failure is terminal. A breakpoint node
// then reports Breakpoint once without polling. Every later tick polls the
// action once. The operator's effects are applied to bb only when the action
// succeeds.
func (t *PlannerTask) Tick(agent any, bb *btmod.Blackboard) Status {
	if t.status.Done() {
		return t.status
	}
	if !t.started {
		t.started = true
		failed, err := condition.Check(agent, bb, t.preconditions)
		if err != nil || failed != nil {
			attrs := []any{"task", t.String()}
			if failed != nil {
				attrs = append(attrs, "precondition", failed.String())
			}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			t.logger.Info("[PlannerTask] precondition no longer holds", attrs...)
			t.status = Failed
			return t.status
		}
		if t.node.Breakpoint {
			t.logger.Info("[PlannerTask] breakpoint", "task", t.String())
			return Breakpoint
		}
	}

	if t.action == nil {
		t.logger.Warn("[PlannerTask] task has no action; treating as failed",
			"task", t.String(),
			"action", t.node.Action)
		t.status = Failed
		return t.status
	}

	switch st := t.poll(agent, bb); st {
	case Succeeded:
		if err := condition.ApplyAll(agent, bb, t.node.Effects); err != nil {
			t.logger.Warn("[PlannerTask] applying effects failed", "task", t.String(), "error", err)
			t.status = Failed
			return t.status
		}
		t.status = Succeeded
	case Failed:
		t.status = Failed
	case Running, Breakpoint:
		t.status = Running
	default:
		t.logger.Warn("[PlannerTask] action returned an unknown status; treating as failed",
			"task", t.String(),
			"status", st.String())
		t.status = Failed
	}
	return t.status
}

func (t *PlannerTask) poll(agent any, bb *btmod.Blackboard) (st Status) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("[PlannerTask] action panicked", "task", t.String(), "panic", r)
			st = Failed
		}
	}()
	return t.action.Poll(agent, bb)
}

// TaskNetworkPlan is a steppable plan: the operator tasks found by a
// PlanBuilder, executed in order.
type TaskNetworkPlan struct {
	id      uuid.UUID
	nodes   []*graph.Node
	tasks   []*PlannerTask
	mtr     MTR
	current int
	status  Status
}

// NewTaskNetworkPlan assembles builder output into a plan, instantiating
// one action per operator from lib (a nil lib leaves every task without an
// action). Each task's preconditions are gathered along the path recorded
// for its operator. It returns ErrMalformedPlan if the nodes contain
// anything but Link and Operator nodes, or an operator whose recorded path
// does not run from a root down to it.
func NewTaskNetworkPlan(res *BuildResult, lib *Library, logger *slog.Logger) (*TaskNetworkPlan, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil build result", ErrMalformedPlan)
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &TaskNetworkPlan{
		id:     uuid.New(),
		nodes:  slices.Clone(res.Nodes),
		mtr:    res.MTR.Clone(),
		status: Running,
	}
	for i, n := range res.Nodes {
		if n == nil {
			return nil, fmt.Errorf("%w: nil node at %d", ErrMalformedPlan, i)
		}
		switch n.Kind {
		case graph.KindLink:
			if n.Target == nil {
				return nil, fmt.Errorf("%w: link %s has no target", ErrMalformedPlan, n)
			}
		case graph.KindOperator:
			var path []*graph.Node
			if i < len(res.Paths) {
				path = res.Paths[i]
			}
			if len(path) == 0 || path[0].Kind != graph.KindRoot || path[len(path)-1] != n {
				return nil, fmt.Errorf("%w: %s has no path to a root", ErrMalformedPlan, n)
			}
			var pre []condition.Precondition
			for _, c := range path {
				pre = append(pre, c.Preconditions...)
			}
			p.tasks = append(p.tasks, &PlannerTask{
				node:          n,
				preconditions: pre,
				action:        lib.New(n.Action),
				status:        Running,
				logger:        logger,
			})
		default:
			return nil, fmt.Errorf("%w: %s at %d is neither a link nor an operator", ErrMalformedPlan, n, i)
		}
	}
	return p, nil
}

// ID uniquely identifies the plan.
func (p *TaskNetworkPlan) ID() uuid.UUID {
	return p.id
}

// MTR returns the plan's method traversal record.
func (p *TaskNetworkPlan) MTR() MTR {
	return p.mtr
}

// Nodes returns the plan's Link and Operator nodes, as built.
func (p *TaskNetworkPlan) Nodes() []*graph.Node {
	return p.nodes
}

// Tasks returns one task per operator, in execution order.
func (p *TaskNetworkPlan) Tasks() []*PlannerTask {
	return p.tasks
}

// Len returns the number of tasks.
func (p *TaskNetworkPlan) Len() int {
	return len(p.tasks)
}

// Status returns Running until the plan finishes.
func (p *TaskNetworkPlan) Status() Status {
	return p.status
}

// IsRunning reports whether the plan has not finished.
func (p *TaskNetworkPlan) IsRunning() bool {
	return p.status == Running
}

// CurrentTask returns the task the next tick will advance, or nil when the
// plan has finished.
func (p *TaskNetworkPlan) CurrentTask() *PlannerTask {
	if p.status.Done() || p.current >= len(p.tasks) {
		return nil
	}
	return p.tasks[p.current]
}

// Tick advances the current task. When it succeeds the plan moves on to the
// next task on the following tick, and succeeds after the last; when it
// fails the plan fails.
func (p *TaskNetworkPlan) Tick(agent any, bb *btmod.Blackboard) Status {
	if p.status.Done() {
		return p.status
	}
	if p.current >= len(p.tasks) {
		p.status = Succeeded
		return p.status
	}
	switch p.tasks[p.current].Tick(agent, bb) {
	case Succeeded:
		p.current++
		if p.current == len(p.tasks) {
			p.status = Succeeded
			return p.status
		}
		return Running
	case Failed:
		p.status = Failed
		return p.status
	case Breakpoint:
		return Breakpoint
	default:
		return Running
	}
}

func (p *TaskNetworkPlan) String() string {
	names := make([]string, len(p.tasks))
	for i, t := range p.tasks {
		names[i] = t.String()
	}
	return fmt.Sprintf("plan %s mtr=%s [%s]", p.id.String()[:8], p.mtr, strings.Join(names, " "))
}
