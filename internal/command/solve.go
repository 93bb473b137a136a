package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/joeycumines/go-htn/internal/config"
	"github.com/joeycumines/go-htn/internal/domain"
	"github.com/joeycumines/go-htn/internal/example/cleaningrobot"
	"github.com/joeycumines/go-htn/internal/example/swap"
	"github.com/joeycumines/go-htn/internal/planner"
	"github.com/joeycumines/go-htn/internal/worldstate"
)

// flatProblem is a built-in domain for the flat planner, with the
// problem selected by the positional arguments.
type flatProblem struct {
	usage    string
	registry func() (*domain.Registry, error)
	problem  func(args []string) (*worldstate.State, []domain.Task, error)
}

var flatProblems = map[string]flatProblem{
	"cleaning-robot": {
		usage:    "cleaning-robot: no arguments; cleans room2 starting from room0",
		registry: cleaningrobot.NewRegistry,
		problem: func(args []string) (*worldstate.State, []domain.Task, error) {
			if len(args) != 0 {
				return nil, nil, fmt.Errorf("cleaning-robot takes no arguments, got %v", args)
			}
			return cleaningrobot.InitialState(), cleaningrobot.Goal(), nil
		},
	},
	"swap": {
		usage:    "swap [a b]: swaps held item a for b (default: x y)",
		registry: swap.NewRegistry,
		problem: func(args []string) (*worldstate.State, []domain.Task, error) {
			switch len(args) {
			case 0:
				return swap.InitialState(), swap.Goal("x", "y"), nil
			case 2:
				return swap.InitialState(), swap.Goal(args[0], args[1]), nil
			}
			return nil, nil, fmt.Errorf("swap takes zero or two arguments, got %v", args)
		},
	},
}

// SolveCommand runs the flat planner over one of the built-in domains.
type SolveCommand struct {
	*BaseCommand
	logFlags
	config   *config.Config
	domain   string
	maxDepth int
}

// NewSolveCommand creates a new solve command.
func NewSolveCommand(cfg *config.Config) *SolveCommand {
	return &SolveCommand{
		BaseCommand: NewBaseCommand(
			"solve",
			"Solve a built-in task network with the flat planner",
			"solve [options] [args...]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the solve command.
func (c *SolveCommand) SetupFlags(fs *flag.FlagSet) {
	names := make([]string, 0, len(flatProblems))
	for name := range flatProblems {
		names = append(names, name)
	}
	sort.Strings(names)
	fs.StringVar(&c.domain, "domain", "", fmt.Sprintf("Domain to solve, one of %v (default from config)", names))
	fs.IntVar(&c.maxDepth, "max-depth", 0, "Recursion bound (default from config)")
	c.setupLogFlags(fs)
}

// Execute solves the selected problem, printing the plan and the changes it
// makes to the initial state.
func (c *SolveCommand) Execute(args []string, stdout, stderr io.Writer) error {
	settings, err := config.DefaultSchema().Settings(c.config, c.Name())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
	}
	lc, err := c.openLog(settings)
	if err != nil {
		return err
	}
	defer func() { _ = lc.Close() }()
	logger := lc.logger(stderr)

	name := c.domain
	if name == "" {
		name = config.DefaultSchema().ResolveCommand(c.config, c.Name(), "domain")
	}
	fp, ok := flatProblems[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Unknown domain: %s\n", name)
		return fmt.Errorf("unknown domain: %s", name)
	}
	initial, tasks, err := fp.problem(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Usage: %s\n", fp.usage)
		return err
	}
	reg, err := fp.registry()
	if err != nil {
		return fmt.Errorf("building %s domain: %w", name, err)
	}

	maxDepth := c.maxDepth
	if maxDepth <= 0 {
		maxDepth = settings.PlannerMaxDepth
	}
	p := planner.New(reg, planner.WithMaxDepth(maxDepth), planner.WithLogger(logger))

	plan, err := p.Solve(initial, tasks)
	if err != nil {
		if errors.Is(err, planner.ErrNoPlan) {
			_, _ = fmt.Fprintf(stdout, "No plan found for %s.\n", name)
		}
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Plan (%d steps):\n", len(plan))
	for i, step := range plan.Strings() {
		_, _ = fmt.Fprintf(stdout, "  %d. %s\n", i+1, step)
	}

	final, err := p.Apply(initial, plan)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, "\nChanges:")
	_, _ = fmt.Fprintln(stdout, initial.Diff(final).String())
	return nil
}
