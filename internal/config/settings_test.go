package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// unsetenv removes key for the duration of the test. An empty value would
// still take precedence over the config.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}
}

func TestSettings_Defaults(t *testing.T) {
	unsetenv(t, "HTN_LOG_LEVEL")
	unsetenv(t, "HTN_LOG_FILE")

	got, err := DefaultSchema().Settings(nil, "")
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	want := Settings{
		PlannerMaxDepth: 30,
		GraphMaxDepth:   256,
		ReplanInterval:  1,
		TickInterval:    100 * time.Millisecond,
		ExprCacheSize:   1000,
		LogLevel:        "info",
		LogFormat:       "text",
	}
	if got != want {
		t.Fatalf("Settings = %+v, want %+v", got, want)
	}
}

func TestSettings_Overrides(t *testing.T) {
	unsetenv(t, "HTN_LOG_FILE")
	t.Setenv("HTN_LOG_LEVEL", "warn")

	c, err := LoadFromReader(strings.NewReader(`planner.max-depth 12
log.level debug
debug on
[run]
control.replan-interval 5
control.tick-interval 250ms
log.format json
`))
	if err != nil {
		t.Fatal(err)
	}

	run, err := DefaultSchema().Settings(c, "run")
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if run.PlannerMaxDepth != 12 || run.ReplanInterval != 5 || run.TickInterval != 250*time.Millisecond {
		t.Errorf("unexpected run settings %+v", run)
	}
	if run.LogFormat != "json" || !run.Debug || run.Verbose {
		t.Errorf("unexpected run settings %+v", run)
	}
	if run.LogLevel != "warn" {
		t.Errorf("expected the env var to win, got %q", run.LogLevel)
	}

	solve, err := DefaultSchema().Settings(c, "solve")
	if err != nil {
		t.Fatal(err)
	}
	if solve.ReplanInterval != 1 || solve.LogFormat != "text" {
		t.Errorf("[run] values leaked into solve: %+v", solve)
	}
}

func TestSettings_InvalidValuesFallBack(t *testing.T) {
	unsetenv(t, "HTN_LOG_LEVEL")
	unsetenv(t, "HTN_LOG_FILE")

	c := NewConfig()
	c.SetGlobalOption("graph.max-depth", "0")
	c.SetGlobalOption("control.tick-interval", "fast")
	c.SetGlobalOption("log.format", "xml")
	c.SetGlobalOption("verbose", "sometimes")

	got, err := DefaultSchema().Settings(c, "")
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"graph.max-depth", "control.tick-interval", "log.format", "verbose"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
	if got.GraphMaxDepth != 256 || got.TickInterval != 100*time.Millisecond || got.LogFormat != "text" || got.Verbose {
		t.Errorf("expected defaults in place of bad values, got %+v", got)
	}
}
