package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	btmod "github.com/joeycumines/go-htn/internal/bt"
	"github.com/joeycumines/go-htn/internal/condition"
	"github.com/joeycumines/go-htn/internal/config"
	"github.com/joeycumines/go-htn/internal/example/firefighter"
	"github.com/joeycumines/go-htn/internal/graph"
	"github.com/joeycumines/go-htn/internal/network"
)

// RunCommand drives the replanning control loop over a task network graph.
type RunCommand struct {
	*BaseCommand
	logFlags
	config         *config.Config
	graphPath      string
	statePath      string
	ticks          int
	interval       time.Duration
	replanInterval int
	maxDepth       int
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run the replanning control loop over a task network graph",
			"run [options]",
		),
		config: cfg,
		ticks:  -1,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.graphPath, "graph", "", "Graph YAML file (default: the built-in firefighter network)")
	fs.StringVar(&c.statePath, "state", "", "Initial blackboard YAML file (default: the built-in firefighter state)")
	fs.IntVar(&c.ticks, "ticks", -1, "Number of ticks to run, 0 runs until interrupted (default from config)")
	fs.DurationVar(&c.interval, "interval", 0, "Tick period (default from config)")
	fs.IntVar(&c.replanInterval, "replan-interval", 0, "Ticks between plan generations (default from config)")
	fs.IntVar(&c.maxDepth, "max-depth", 0, "Graph search recursion bound (default from config)")
	c.setupLogFlags(fs)
}

// Execute loads the graph and blackboard, then ticks the planner until the
// tick limit is reached or the process is interrupted. Plan changes are
// printed as they happen, followed by the counters and final blackboard.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := noArgs(args, stderr); err != nil {
		return err
	}
	schema := config.DefaultSchema()
	settings, err := schema.Settings(c.config, c.Name())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
	}
	lc, err := c.openLog(settings)
	if err != nil {
		return err
	}
	defer func() { _ = lc.Close() }()
	logger := lc.logger(stderr)

	condition.SetExprCacheSize(settings.ExprCacheSize)

	ticks, err := c.resolveTicks(schema)
	if err != nil {
		return err
	}
	graphPath := c.graphPath
	if graphPath == "" {
		graphPath = schema.ResolveCommand(c.config, c.Name(), "graph")
	}
	statePath := c.statePath
	if statePath == "" {
		statePath = schema.ResolveCommand(c.config, c.Name(), "state")
	}

	lib := firefighter.Actions(nil)
	var root *graph.Node
	if graphPath != "" {
		root, err = graph.LoadFile(graphPath, lib)
	} else {
		root, err = firefighter.LoadGraph(lib)
	}
	if err != nil {
		return fmt.Errorf("loading graph: %w", err)
	}
	var bb *btmod.Blackboard
	if statePath != "" {
		if bb, err = btmod.LoadBlackboardFile(statePath); err != nil {
			return fmt.Errorf("loading state: %w", err)
		}
	} else {
		bb = firefighter.Blackboard()
	}

	maxDepth := firstPositive(c.maxDepth, settings.GraphMaxDepth)
	replanInterval := firstPositive(c.replanInterval, settings.ReplanInterval)
	interval := settings.TickInterval
	if c.interval > 0 {
		interval = c.interval
	}

	p := network.NewPlanner(root, nil, bb,
		network.WithBuilder(network.NewPlanBuilder(
			network.WithMaxDepth(maxDepth),
			network.WithBuilderLogger(logger),
		)),
		network.WithLibrary(lib),
		network.WithLogger(logger),
		network.WithReplanInterval(replanInterval),
		network.WithOnPlanChanged(func(_, next *network.TaskNetworkPlan) {
			if next == nil {
				_, _ = fmt.Fprintln(stdout, "plan: none")
				return
			}
			_, _ = fmt.Fprintf(stdout, "plan: %s\n", next)
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger.Debug("[Run] starting control loop", "ticks", ticks, "interval", interval)
	if err := network.NewRunner(p, interval, network.WithMaxTicks(ticks)).Run(ctx); err != nil {
		return err
	}

	s := p.Stats()
	_, _ = fmt.Fprintf(stdout, "\nticks=%d generated=%d replaced=%d discarded=%d no-plan=%d succeeded=%d failed=%d\n",
		s.Ticks, s.Generated, s.Replaced, s.Discarded, s.NoPlan, s.Succeeded, s.Failed)
	_, _ = fmt.Fprintln(stdout, "Blackboard:")
	snapshot := bb.Snapshot()
	for _, key := range sortedKeys(snapshot) {
		_, _ = fmt.Fprintf(stdout, "  %s: %v\n", key, snapshot[key])
	}
	return nil
}

func (c *RunCommand) resolveTicks(schema *config.ConfigSchema) (int, error) {
	if c.ticks >= 0 {
		return c.ticks, nil
	}
	ticks, err := schema.Int(c.config, c.Name(), "ticks")
	if err != nil {
		return 0, fmt.Errorf("invalid run ticks: %w", err)
	}
	if ticks < 0 {
		return 0, fmt.Errorf("invalid run ticks: %d", ticks)
	}
	return ticks, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
