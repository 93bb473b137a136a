package config

import (
	"fmt"
	"os"
	"strings"
)

// SetKeyInFile sets a global option in the config file at path, creating the
// file if needed. The key must be declared by DefaultSchema and the value
// must have the declared type.
//
// Comments, sections and the order of other lines are preserved. An existing
// global line for key is replaced in place; otherwise the line is inserted
// before the first [section] header, or appended.
func SetKeyInFile(path, key, value string) error {
	opt := DefaultSchema().Lookup("", key)
	if opt == nil {
		return fmt.Errorf("unknown global option: %q", key)
	}
	if err := validateType(opt.Type, value); err != nil {
		return fmt.Errorf("option %q: %w", key, err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	entry := strings.TrimSpace(key + " " + value)
	lines := setGlobalLine(splitLines(string(data)), key, entry)
	return writeFileAtomic(path, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// setGlobalLine replaces or inserts entry among the global lines.
func setGlobalLine(lines []string, key, entry string) []string {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			out := make([]string, 0, len(lines)+1)
			out = append(out, lines[:i]...)
			out = append(out, entry)
			return append(out, lines[i:]...)
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = entry
			return lines
		}
	}
	return append(lines, entry)
}
