package command

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/go-htn/internal/config"
)

func newTestRegistry() *Registry {
	cfg := config.NewConfig()
	registry := NewRegistry()
	registry.Register(NewHelpCommand(registry))
	registry.Register(NewVersionCommand("1.0.0"))
	registry.Register(NewConfigCommand(cfg))
	registry.Register(NewSolveCommand(cfg))
	registry.Register(NewRunCommand(cfg))
	registry.Register(NewGraphCommand(cfg))
	return registry
}

func TestNewHelpCommand(t *testing.T) {
	cmd := NewHelpCommand(NewRegistry())

	if cmd.Name() != "help" {
		t.Errorf("Expected name 'help', got %s", cmd.Name())
	}
	expectedUsage := "help [command]"
	if cmd.Usage() != expectedUsage {
		t.Errorf("Expected usage %q, got %q", expectedUsage, cmd.Usage())
	}
}

func TestHelpCommandExecute(t *testing.T) {
	registry := newTestRegistry()
	cmd, err := registry.Get("help")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("general help", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(nil, &stdout, &stderr); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		output := stdout.String()
		for _, part := range []string{
			"htn - hierarchical task network planning",
			"Usage: htn <command>",
			"Available commands:",
			"config",
			"graph",
			"run",
			"solve",
			"version",
		} {
			if !strings.Contains(output, part) {
				t.Errorf("Expected output to contain %q. Output: %s", part, output)
			}
		}
		// commands are listed in name order
		if strings.Index(output, "  run") > strings.Index(output, "  solve") {
			t.Errorf("Expected commands sorted by name. Output: %s", output)
		}
	})

	t.Run("command help shows flags", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute([]string{"solve"}, &stdout, &stderr); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		output := stdout.String()
		for _, part := range []string{
			"Command: solve",
			"Usage: solve [options] [args...]",
			"Flags:",
			"-domain",
			"cleaning-robot",
			"-max-depth",
			"-log-level",
		} {
			if !strings.Contains(output, part) {
				t.Errorf("Expected output to contain %q. Output: %s", part, output)
			}
		}
	})

	t.Run("command without flags", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute([]string{"version"}, &stdout, &stderr); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if strings.Contains(stdout.String(), "Flags:") {
			t.Errorf("Expected no flags section. Output: %s", stdout.String())
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute([]string{"nope"}, &stdout, &stderr); err == nil {
			t.Fatal("Expected an error for an unknown command")
		}
		if !strings.Contains(stderr.String(), "Unknown command: nope") {
			t.Errorf("Unexpected stderr: %s", stderr.String())
		}
	})
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute(nil, &stdout, &stderr); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got, want := stdout.String(), "htn version 1.2.3\n"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	stdout.Reset()
	if err := cmd.Execute([]string{"extra"}, &stdout, &stderr); err == nil {
		t.Fatal("Expected an error for unexpected arguments")
	}
	if !strings.Contains(stderr.String(), "unexpected arguments: [extra]") {
		t.Errorf("Unexpected stderr: %s", stderr.String())
	}
}

func TestConfigCommand_Usage(t *testing.T) {
	cmd := NewConfigCommand(config.NewConfig())

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute(nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "config <key> <value>") {
		t.Errorf("Expected usage. Output: %s", stdout.String())
	}
}

func TestConfigCommand_GetResolvesDefaults(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetGlobalOption("graph.max-depth", "64")
	cmd := NewConfigCommand(cfg)

	tests := []struct {
		key  string
		want string
	}{
		{"graph.max-depth", "graph.max-depth: 64\n"},
		{"planner.max-depth", "planner.max-depth: 30\n"},
		{"control.tick-interval", "control.tick-interval: 100ms\n"},
		{"no.such.key", "Configuration key 'no.such.key' not found\n"},
	}
	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute([]string{tt.key}, &stdout, &stderr); err != nil {
			t.Fatalf("%s: %v", tt.key, err)
		}
		if got := stdout.String(); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.key, tt.want, got)
		}
	}
}

func TestConfigCommand_SetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	cfg := config.NewConfig()
	cmd := NewConfigCommand(cfg, path)

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute([]string{"planner.max-depth", "12"}, &stdout, &stderr); err != nil {
		t.Fatalf("Expected no error, got: %v (stderr: %s)", err, stderr.String())
	}
	if got, want := stdout.String(), "Set configuration: planner.max-depth = 12\n"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if v, _ := cfg.GetGlobalOption("planner.max-depth"); v != "12" {
		t.Errorf("Expected in-memory value 12, got %q", v)
	}

	loaded, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := loaded.GetGlobalOption("planner.max-depth"); v != "12" {
		t.Errorf("Expected persisted value 12, got %q", v)
	}
}

func TestConfigCommand_SetRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	cfg := config.NewConfig()
	cmd := NewConfigCommand(cfg, path)

	for _, args := range [][]string{
		{"no.such.key", "1"},
		{"planner.max-depth", "deep"},
	} {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(args, &stdout, &stderr); err == nil {
			t.Errorf("%v: expected an error", args)
		}
		if !strings.Contains(stderr.String(), "Failed to set "+args[0]) {
			t.Errorf("%v: unexpected stderr: %s", args, stderr.String())
		}
		if _, ok := cfg.GetGlobalOption(args[0]); ok {
			t.Errorf("%v: rejected value must not be kept", args)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no config file, stat err: %v", err)
	}
}

func TestConfigCommand_Show(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetGlobalOption("verbose", "true")
	cfg.SetGlobalOption("debug", "false")
	cfg.SetCommandOption("solve", "domain", "swap")

	cmd := NewConfigCommand(cfg)
	cmd.showAll = true

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute(nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	want := "Global configuration:\n" +
		"  debug: false\n" +
		"  verbose: true\n" +
		"\nCommand-specific configuration:\n" +
		"  [solve]\n" +
		"    domain: swap\n"
	if got := stdout.String(); got != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, got)
	}

	cmd.showAll = false
	cmd.showGlobal = true
	stdout.Reset()
	if err := cmd.Execute(nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stdout.String(), "[solve]") {
		t.Errorf("Expected global options only. Output: %s", stdout.String())
	}
}

func TestConfigCommand_ValidateAndSchema(t *testing.T) {
	cfg := config.NewConfig()
	cmd := NewConfigCommand(cfg)

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute([]string{"validate"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "Configuration is valid.\n" {
		t.Errorf("Unexpected output: %q", got)
	}

	cfg.SetGlobalOption("bogus", "1")
	stdout.Reset()
	if err := cmd.Execute([]string{"validate"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "Configuration has 1 issue(s):") ||
		!strings.Contains(stdout.String(), `unknown global option: "bogus"`) {
		t.Errorf("Unexpected output: %s", stdout.String())
	}

	stdout.Reset()
	if err := cmd.Execute([]string{"schema"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	for _, part := range []string{"planner.max-depth", "control.replan-interval", "[run]"} {
		if !strings.Contains(stdout.String(), part) {
			t.Errorf("Expected schema to contain %q", part)
		}
	}
}

func TestConfigCommand_TooManyArgs(t *testing.T) {
	cmd := NewConfigCommand(config.NewConfig())

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute([]string{"a", "b", "c"}, &stdout, &stderr); err == nil {
		t.Fatal("Expected an error")
	}
}
