package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType is the declared type of an option's value.
type OptionType string

const (
	// TypeString accepts any value. It is the default.
	TypeString OptionType = "string"
	// TypeBool accepts true/false, yes/no, on/off and 1/0.
	TypeBool OptionType = "bool"
	// TypeInt accepts a base 10 integer.
	TypeInt OptionType = "int"
	// TypeDuration accepts a time.ParseDuration string, e.g. "250ms".
	TypeDuration OptionType = "duration"
)

// ConfigOption declares one option: where it may appear, its type and
// default, and the environment variable that overrides it.
type ConfigOption struct {
	// Key is the option name as written in the config file.
	Key  string
	Type OptionType
	// Default is used when neither the environment nor the config sets
	// the option. It must parse as Type.
	Default     string
	Description string
	// Section is the command the option belongs to, or "" for a global
	// option, which every command inherits.
	Section string
	EnvVar  string
}

// ConfigSchema is the set of declared options. It drives validation, help
// output and typed resolution.
type ConfigSchema struct {
	// options keeps registration order, for help output.
	options []*ConfigOption
	// index maps section, then key, to its option. Globals live under "".
	index map[string]map[string]*ConfigOption
}

// NewSchema returns an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{index: make(map[string]map[string]*ConfigOption)}
}

// Register declares opts. Registering a key twice in the same section
// replaces the earlier declaration.
func (s *ConfigSchema) Register(opts ...ConfigOption) {
	for _, opt := range opts {
		section := s.index[opt.Section]
		if section == nil {
			section = make(map[string]*ConfigOption)
			s.index[opt.Section] = section
		}
		if existing := section[opt.Key]; existing != nil {
			*existing = opt
			continue
		}
		ref := new(ConfigOption)
		*ref = opt
		section[opt.Key] = ref
		s.options = append(s.options, ref)
	}
}

// Lookup returns the option declared for key in section ("" for global),
// without falling back to globals, or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	return s.index[section][key]
}

// option is Lookup with the fallback a command sees: its own declaration
// first, then the global one.
func (s *ConfigSchema) option(command, key string) *ConfigOption {
	if opt := s.Lookup(command, key); opt != nil {
		return opt
	}
	return s.Lookup("", key)
}

// Resolve returns the effective value of a global option.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveCommand(c, "", key)
}

// ResolveCommand returns the effective value of key for command: the
// declared environment variable wins (even when set to ""), then the
// [command] section, then the global value, then the default. The default
// of a section-specific option takes precedence over a global one. An
// undeclared key that is not set resolves to "".
func (s *ConfigSchema) ResolveCommand(c *Config, command, key string) string {
	opt := s.option(command, key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetCommandOption(command, key); ok {
			return v
		}
	}
	return s.Default(command, key)
}

// Default returns the declared default of key for command, or "".
func (s *ConfigSchema) Default(command, key string) string {
	if opt := s.option(command, key); opt != nil {
		return opt.Default
	}
	return ""
}

// Bool resolves key for command and parses it as a bool.
func (s *ConfigSchema) Bool(c *Config, command, key string) (bool, error) {
	v, err := s.parse(c, command, key, TypeBool)
	b, _ := v.(bool)
	return b, err
}

// Int resolves key for command and parses it as an int.
func (s *ConfigSchema) Int(c *Config, command, key string) (int, error) {
	v, err := s.parse(c, command, key, TypeInt)
	n, _ := v.(int)
	return n, err
}

// Duration resolves key for command and parses it as a time.Duration.
func (s *ConfigSchema) Duration(c *Config, command, key string) (time.Duration, error) {
	v, err := s.parse(c, command, key, TypeDuration)
	d, _ := v.(time.Duration)
	return d, err
}

func (s *ConfigSchema) parse(c *Config, command, key string, t OptionType) (any, error) {
	v, err := parseValue(t, s.ResolveCommand(c, command, key))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// parseValue converts value to the Go type for t: string, bool, int or
// time.Duration.
func parseValue(t OptionType, value string) (any, error) {
	switch t {
	case TypeString, "":
		return value, nil
	case TypeBool:
		if b, err := parseBool(value); err == nil {
			return b, nil
		}
		return nil, fmt.Errorf("expected bool, got %q", value)
	case TypeInt:
		if n, err := strconv.Atoi(value); err == nil {
			return n, nil
		}
		return nil, fmt.Errorf("expected int, got %q", value)
	case TypeDuration:
		if d, err := time.ParseDuration(value); err == nil {
			return d, nil
		}
		return nil, fmt.Errorf("expected duration, got %q", value)
	}
	return nil, fmt.Errorf("unknown option type %q", t)
}

func validateType(t OptionType, value string) error {
	_, err := parseValue(t, value)
	return err
}

// ValidateConfig reports, sorted, every option in c that the schema does not
// declare for its section (or globally), and every value that does not
// parse as its declared type. An empty result means c is valid.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	check := func(section, key, value string) {
		opt := s.option(section, key)
		switch {
		case opt == nil && section == "":
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
		case opt == nil:
			issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
		default:
			err := validateType(opt.Type, value)
			switch {
			case err == nil:
			case section == "":
				issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
			default:
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	for key, value := range c.Global {
		check("", key, value)
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			check(section, key, value)
		}
	}
	sort.Strings(issues)
	return issues
}

// FormatHelp lists every option, globals first and then one block per
// section in name order.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	for _, section := range slices.Sorted(maps.Keys(s.index)) {
		switch {
		case section == "":
			b.WriteString("Global Options:\n")
		case b.Len() > 0:
			b.WriteString("\n")
			fallthrough
		default:
			fmt.Fprintf(&b, "[%s] Options:\n", section)
		}
		for _, o := range s.options {
			if o.Section == section {
				writeOptionHelp(&b, o)
			}
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o *ConfigOption) {
	fmt.Fprintf(b, "  %-35s %s", o.Key, o.Description)
	var notes []string
	if o.Type != "" && o.Type != TypeString {
		notes = append(notes, "type: "+string(o.Type))
	}
	if o.Default != "" {
		notes = append(notes, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		notes = append(notes, "env: "+o.EnvVar)
	}
	if len(notes) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(notes, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema declares every option htn understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.Register(
		ConfigOption{Key: "verbose", Type: TypeBool, Default: "false", Description: "Enable verbose output"},
		ConfigOption{Key: "debug", Type: TypeBool, Default: "false", Description: "Enable debug mode (debug logging and search traces)"},

		ConfigOption{Key: "planner.max-depth", Type: TypeInt, Default: "30", Description: "Recursion bound for the flat planner"},
		ConfigOption{Key: "graph.max-depth", Type: TypeInt, Default: "256", Description: "Recursion bound for the graph plan builder"},
		ConfigOption{Key: "control.replan-interval", Type: TypeInt, Default: "1", Description: "Ticks between candidate plan generations"},
		ConfigOption{Key: "control.tick-interval", Type: TypeDuration, Default: "100ms", Description: "Period of the control loop ticker"},
		ConfigOption{Key: "expr.cache-size", Type: TypeInt, Default: "1000", Description: "Compiled expression cache capacity"},

		ConfigOption{Key: "log.file", Type: TypeString, Description: "Log file path (appended to)", EnvVar: "HTN_LOG_FILE"},
		ConfigOption{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "HTN_LOG_LEVEL"},
		ConfigOption{Key: "log.format", Type: TypeString, Default: "text", Description: "Log format: text, json"},

		ConfigOption{Key: "domain", Section: "solve", Type: TypeString, Default: "cleaning-robot", Description: "Built-in flat domain to solve"},

		ConfigOption{Key: "graph", Section: "run", Type: TypeString, Description: "Graph YAML file (default: the built-in firefighter network)"},
		ConfigOption{Key: "state", Section: "run", Type: TypeString, Description: "Initial blackboard YAML file"},
		ConfigOption{Key: "ticks", Section: "run", Type: TypeInt, Default: "50", Description: "Number of ticks to run (0 runs until interrupted)"},
	)
	return s
}
