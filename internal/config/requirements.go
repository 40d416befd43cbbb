package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRequirements reads an ordered requirement list from a YAML file.
// The file is either a bare sequence of strings or a mapping with a
// "requirements" key holding that sequence. Blank entries are rejected.
func LoadRequirements(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading requirements file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing requirements YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var reqs []string
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&reqs); err != nil {
			return nil, fmt.Errorf("decoding requirements: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Requirements []string `yaml:"requirements"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("decoding requirements: %w", err)
		}
		reqs = wrapped.Requirements
	default:
		return nil, fmt.Errorf("requirements file must be a list or a mapping with a requirements key")
	}

	for i, r := range reqs {
		if strings.TrimSpace(r) == "" {
			return nil, fmt.Errorf("requirement %d is empty", i)
		}
	}
	return reqs, nil
}
