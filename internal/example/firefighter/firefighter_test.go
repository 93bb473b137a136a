package firefighter

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	btmod "github.com/joeycumines/go-htn/internal/bt"
	"github.com/joeycumines/go-htn/internal/graph"
	"github.com/joeycumines/go-htn/internal/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func render(t *testing.T, root *graph.Node) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, graph.Fprint(&b, root))
	return b.String()
}

// graphs returns the network built in Go and loaded from YAML.
func graphs(t *testing.T) map[string]*graph.Node {
	t.Helper()
	loaded, err := LoadGraph(Actions(nil))
	require.NoError(t, err)
	return map[string]*graph.Node{"go": Graph(), "yaml": loaded}
}

type transitions []string

func (c *transitions) record(_, next *network.TaskNetworkPlan) {
	if next == nil {
		*c = append(*c, "nil")
		return
	}
	*c = append(*c, next.MTR().String())
}

func newPlanner(root *graph.Node, bb *btmod.Blackboard, log *transitions) *network.Planner {
	return network.NewPlanner(root, nil, bb,
		network.WithLibrary(Actions(nil)),
		network.WithLogger(quietLogger()),
		network.WithOnPlanChanged(log.record))
}

func TestGraph_MatchesYAML(t *testing.T) {
	t.Parallel()

	g := graphs(t)
	if diff := cmp.Diff(render(t, g["go"]), render(t, g["yaml"])); diff != "" {
		t.Fatalf("Go and YAML networks differ (-go +yaml):\n%s", diff)
	}
	assert.Contains(t, render(t, g["go"]), "[1] RefillFirst -> Refill depth=3")
}

func TestLoadGraph_UnknownAction(t *testing.T) {
	t.Parallel()

	_, err := LoadGraph(network.NewLibrary())
	require.ErrorIs(t, err, graph.ErrInvalidGraph)
	require.ErrorContains(t, err, "unknown action")
}

func TestBlackboard(t *testing.T) {
	t.Parallel()

	bb := Blackboard()
	assert.Equal(t, map[string]any{
		Water:         3,
		Capacity:      3,
		FireVisible:   false,
		VictimVisible: false,
	}, bb.Snapshot())
	assert.NotSame(t, bb, Blackboard())
}

func TestActions(t *testing.T) {
	t.Parallel()

	lib := Actions(Durations{ActionGoToFire: 1})
	assert.Equal(t, []string{
		ActionCarryVictim, ActionFillTank, ActionGoToFire, ActionGoToHydrant,
		ActionGoToVictim, ActionPatrol, ActionSpray,
	}, lib.Names())

	require.Equal(t, network.Succeeded, lib.New(ActionGoToFire).Poll(nil, nil))

	spray := lib.New(ActionSpray)
	require.Equal(t, network.Running, spray.Poll(nil, nil))
	require.Equal(t, network.Succeeded, spray.Poll(nil, nil))

	patrol := lib.New(ActionPatrol)
	for range 10 {
		require.Equal(t, network.Running, patrol.Poll(nil, nil))
	}
}

func TestScenario_FirePreemptsPatrol(t *testing.T) {
	t.Parallel()

	for name, root := range graphs(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var log transitions
			bb := Blackboard()
			p := newPlanner(root, bb, &log)

			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.MTR{2}, p.CurrentPlan().MTR())

			bb.Set(FireVisible, true)
			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.MTR{0, 1, 0}, p.CurrentPlan().MTR())

			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, true, bb.Get(AtFire))
			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.Succeeded, p.Tick())
			assert.Equal(t, false, bb.Get(FireVisible))
			assert.Equal(t, false, bb.Get(AtFire))
			assert.Equal(t, 2, bb.Get(Water))

			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.MTR{1}, p.CurrentPlan().MTR(), "the tank is topped up next")

			assert.Equal(t, transitions{"[2]", "[0 1 0]", "nil", "[1]"}, log)
			stats := p.Stats()
			assert.Equal(t, 1, stats.Replaced)
			assert.Equal(t, 1, stats.Succeeded)
		})
	}
}

func TestScenario_FillingTankCannotBeInterrupted(t *testing.T) {
	t.Parallel()

	for name, root := range graphs(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var log transitions
			bb := Blackboard()
			bb.Set(Water, 0)
			p := newPlanner(root, bb, &log)

			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.MTR{1}, p.CurrentPlan().MTR())
			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, "FillTank", p.CurrentPlan().CurrentTask().String())

			bb.Set(VictimVisible, true)
			_, err := p.GeneratePlan()
			require.ErrorIs(t, err, network.ErrPlanDiscarded)

			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.Succeeded, p.Tick())
			assert.Equal(t, 3, bb.Get(Water))

			require.Equal(t, network.Running, p.Tick())
			require.Equal(t, network.MTR{0, 0}, p.CurrentPlan().MTR())
			assert.Equal(t, transitions{"[1]", "nil", "[0 0]"}, log)
			assert.Equal(t, 4, p.Stats().Discarded)
		})
	}
}

func TestScenario_VictimPreemptsWalkToHydrant(t *testing.T) {
	t.Parallel()

	var log transitions
	bb := Blackboard()
	bb.Set(Water, 0)
	p := newPlanner(Graph(), bb, &log)

	require.Equal(t, network.Running, p.Tick())
	require.Equal(t, "GoToHydrant", p.CurrentPlan().CurrentTask().String())

	bb.Set(VictimVisible, true)
	require.Equal(t, network.Running, p.Tick())
	require.Equal(t, network.MTR{0, 0}, p.CurrentPlan().MTR())

	for range 2 {
		require.Equal(t, network.Running, p.Tick())
	}
	require.Equal(t, network.Succeeded, p.Tick())
	assert.Equal(t, false, bb.Get(VictimVisible))
	assert.Equal(t, 1, bb.Get(Rescued))
}

func TestScenario_EmptyTankRefillsThroughLink(t *testing.T) {
	t.Parallel()

	bb := Blackboard()
	bb.Set(Water, 0)
	bb.Set(FireVisible, true)

	res, err := network.NewPlanBuilder(network.WithBuilderLogger(quietLogger())).Build(Graph(), nil, bb, nil)
	require.NoError(t, err)
	assert.Equal(t, network.MTR{0, 1, 1}, res.MTR)

	plan, err := network.NewTaskNetworkPlan(res, Actions(nil), quietLogger())
	require.NoError(t, err)
	require.Equal(t, 2, plan.Len())
	var pre []string
	for _, p := range plan.Tasks()[1].Preconditions() {
		pre = append(pre, p.String())
	}
	assert.Equal(t, []string{"fireVisible == true", "water < capacity"}, pre)
}
