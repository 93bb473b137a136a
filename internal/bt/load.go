package bt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadBlackboard decodes a YAML mapping of key to value into a new
// blackboard. An empty document yields an empty blackboard.
func LoadBlackboard(r io.Reader) (*Blackboard, error) {
	var values map[string]any
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode blackboard: %w", err)
	}
	return FromMap(values), nil
}

// LoadBlackboardFile is LoadBlackboard reading from path.
func LoadBlackboardFile(path string) (*Blackboard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blackboard: %w", err)
	}
	defer f.Close()
	return LoadBlackboard(f)
}
