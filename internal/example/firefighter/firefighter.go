// Package firefighter is a graph HTN domain: a firefighter patrols, rescues
// victims, puts out fires, and refills its tank when it runs dry. The same
// network is available as a Go builder (Graph) and as YAML (LoadGraph).
package firefighter

import (
	_ "embed"
	"maps"
	"strings"

	bt "github.com/joeycumines/go-behaviortree"
	btmod "github.com/joeycumines/go-htn/internal/bt"
	"github.com/joeycumines/go-htn/internal/condition"
	"github.com/joeycumines/go-htn/internal/graph"
	"github.com/joeycumines/go-htn/internal/network"
)

//go:embed firefighter.yaml
var graphYAML string

//go:embed blackboard.yaml
var blackboardYAML string

// Blackboard keys.
const (
	FireVisible   = "fireVisible"
	VictimVisible = "victimVisible"
	Water         = "water"
	Capacity      = "capacity"
	AtFire        = "atFire"
	Rescued       = "rescued"
)

// Action names, as registered in the library returned by Actions.
const (
	ActionGoToVictim  = "goto-victim"
	ActionCarryVictim = "carry-victim"
	ActionGoToFire    = "goto-fire"
	ActionSpray       = "spray"
	ActionGoToHydrant = "goto-hydrant"
	ActionFillTank    = "fill-tank"
	ActionPatrol      = "patrol"
)

// Durations maps action names to the number of ticks they take.
type Durations map[string]int

// DefaultDurations are the durations used for actions Actions is not told
// about.
var DefaultDurations = Durations{
	ActionGoToVictim:  2,
	ActionCarryVictim: 2,
	ActionGoToFire:    3,
	ActionSpray:       2,
	ActionGoToHydrant: 2,
	ActionFillTank:    3,
}

// timed succeeds after a fixed number of polls.
type timed struct {
	ticks   int
	elapsed int
}

func (a *timed) Poll(any, *btmod.Blackboard) network.Status {
	a.elapsed++
	if a.elapsed >= a.ticks {
		return network.Succeeded
	}
	return network.Running
}

// Actions returns the action library. overrides replace entries of
// DefaultDurations; patrolling never finishes on its own.
func Actions(overrides Durations) *network.Library {
	durations := maps.Clone(DefaultDurations)
	maps.Copy(durations, overrides)

	lib := network.NewLibrary()
	for name, ticks := range durations {
		lib.Register(name, func() network.Action {
			return &timed{ticks: ticks}
		})
	}
	lib.Register(ActionPatrol, func() network.Action {
		return network.FromNode(bt.New(func([]bt.Node) (bt.Status, error) {
			return bt.Running, nil
		}))
	})
	return lib
}

// Graph builds and finalizes the network. Its choice points rank, highest
// first: Rescue [0,0], Extinguish [0,1,0], refilling to fight a fire
// [0,1,1], Refill [1], Patrol [2].
func Graph() *graph.Node {
	refill := graph.Sequence("Refill",
		graph.NewOperator("GoToHydrant", ActionGoToHydrant),
		graph.NewOperator("FillTank", ActionFillTank).
			NonInterruptable().
			WithEffects(condition.ExprSet(Water, Capacity)),
	).When(condition.Expr("water < capacity"))

	root := graph.NewRoot("firefighter",
		graph.Select("Emergency",
			graph.Sequence("Rescue",
				graph.NewOperator("GoToVictim", ActionGoToVictim),
				graph.NewOperator("CarryVictim", ActionCarryVictim).WithEffects(
					condition.SetValue(VictimVisible, false),
					condition.ExprSet(Rescued, "(rescued ?? 0) + 1"),
				),
			).When(condition.Equal(VictimVisible, true)),
			graph.Select("Fight",
				graph.Sequence("Extinguish",
					graph.NewOperator("GoToFire", ActionGoToFire).
						WithEffects(condition.SetValue(AtFire, true)),
					graph.NewOperator("Spray", ActionSpray).WithEffects(
						condition.SetValue(AtFire, false),
						condition.SetValue(FireVisible, false),
						condition.ExprSet(Water, "water - 1"),
					),
				).When(condition.Expr("water > 0")),
				graph.NewLink("RefillFirst", refill),
			).When(condition.Equal(FireVisible, true)),
		),
		refill,
		graph.NewOperator("Patrol", ActionPatrol),
	)
	if err := graph.Finalize(root); err != nil {
		panic(err)
	}
	return root
}

// LoadGraph loads the embedded YAML form of Graph, checking actions
// against lib.
func LoadGraph(lib graph.ActionLibrary) (*graph.Node, error) {
	return graph.Load(strings.NewReader(graphYAML), lib)
}

// Blackboard returns the initial world: a full tank, nothing on fire.
func Blackboard() *btmod.Blackboard {
	bb, err := btmod.LoadBlackboard(strings.NewReader(blackboardYAML))
	if err != nil {
		panic(err)
	}
	return bb
}
