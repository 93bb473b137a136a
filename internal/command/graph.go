package command

import (
	"flag"
	"fmt"
	"io"

	"github.com/joeycumines/go-htn/internal/config"
	"github.com/joeycumines/go-htn/internal/example/firefighter"
	"github.com/joeycumines/go-htn/internal/graph"
)

// GraphCommand validates a task network graph and prints its finalized form.
type GraphCommand struct {
	*BaseCommand
	config      *config.Config
	graphPath   string
	skipActions bool
}

// NewGraphCommand creates a new graph command.
func NewGraphCommand(cfg *config.Config) *GraphCommand {
	return &GraphCommand{
		BaseCommand: NewBaseCommand(
			"graph",
			"Validate a task network graph and print its finalized form",
			"graph [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the graph command.
func (c *GraphCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.graphPath, "graph", "", "Graph YAML file (default: the built-in firefighter network)")
	fs.BoolVar(&c.skipActions, "skip-actions", false, "Do not check operator actions against the built-in action library")
}

// Execute prints one line per node with its depth, preconditions and effects.
func (c *GraphCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := noArgs(args, stderr); err != nil {
		return err
	}
	path := c.graphPath
	if path == "" {
		path = config.DefaultSchema().ResolveCommand(c.config, "run", "graph")
	}

	var lib graph.ActionLibrary
	if !c.skipActions {
		lib = firefighter.Actions(nil)
	}
	var (
		root *graph.Node
		err  error
	)
	if path != "" {
		root, err = graph.LoadFile(path, lib)
	} else {
		root, err = firefighter.LoadGraph(lib)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Invalid graph: %v\n", err)
		return err
	}
	return graph.Fprint(stdout, root)
}
