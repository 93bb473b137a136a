package config

import (
	"errors"
	"fmt"
	"time"
)

// Settings is the typed view of the planner options, resolved for one
// command by ConfigSchema.ResolveCommand.
type Settings struct {
	PlannerMaxDepth int
	GraphMaxDepth   int
	ReplanInterval  int
	TickInterval    time.Duration
	ExprCacheSize   int

	LogLevel  string
	LogFile   string
	LogFormat string

	Verbose bool
	Debug   bool
}

// Settings resolves the typed options for command ("" for global only).
// Malformed or out of range values are reported, and the default is used in
// their place.
func (s *ConfigSchema) Settings(c *Config, command string) (Settings, error) {
	r := settingsReader{schema: s, config: c, command: command}
	out := Settings{
		PlannerMaxDepth: r.positiveInt("planner.max-depth"),
		GraphMaxDepth:   r.positiveInt("graph.max-depth"),
		ReplanInterval:  r.positiveInt("control.replan-interval"),
		TickInterval:    r.positiveDuration("control.tick-interval"),
		ExprCacheSize:   r.positiveInt("expr.cache-size"),
		LogLevel:        s.ResolveCommand(c, command, "log.level"),
		LogFile:         s.ResolveCommand(c, command, "log.file"),
		LogFormat:       s.ResolveCommand(c, command, "log.format"),
		Verbose:         r.flag("verbose"),
		Debug:           r.flag("debug"),
	}
	switch out.LogFormat {
	case "text", "json":
	default:
		r.errs = append(r.errs, fmt.Errorf("log.format: unsupported format %q", out.LogFormat))
		out.LogFormat = s.Default(command, "log.format")
	}
	return out, errors.Join(r.errs...)
}

// settingsReader collects the errors of the typed getters, substituting the
// declared default for each bad value.
type settingsReader struct {
	schema  *ConfigSchema
	config  *Config
	command string
	errs    []error
}

func (r *settingsReader) fail(key string, err error, t OptionType) any {
	r.errs = append(r.errs, err)
	v, _ := parseValue(t, r.schema.Default(r.command, key))
	return v
}

func (r *settingsReader) positiveInt(key string) int {
	n, err := r.schema.Int(r.config, r.command, key)
	if err == nil && n <= 0 {
		err = fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	if err != nil {
		n, _ = r.fail(key, err, TypeInt).(int)
	}
	return n
}

func (r *settingsReader) positiveDuration(key string) time.Duration {
	d, err := r.schema.Duration(r.config, r.command, key)
	if err == nil && d <= 0 {
		err = fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	if err != nil {
		d, _ = r.fail(key, err, TypeDuration).(time.Duration)
	}
	return d
}

func (r *settingsReader) flag(key string) bool {
	b, err := r.schema.Bool(r.config, r.command, key)
	if err != nil {
		b, _ = r.fail(key, err, TypeBool).(bool)
	}
	return b
}
