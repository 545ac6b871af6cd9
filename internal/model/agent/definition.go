package agent

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EchoAgent      = "GoldEchoAgent"
	SchedulerAgent = "MaintenanceSchedulerHosted"
	PlannerAgent   = "RepairPlannerAgent"
)

//go:embed definitions.yaml
var defaultDefinitions []byte

// Definition captures the static attributes of a hosted agent.
type Definition struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description" json:"description"`
	Instructions string `yaml:"instructions,omitempty" json:"-"`
}

type document struct {
	Agents []Definition `yaml:"agents"`
}

// Set is a name-indexed collection of definitions.
type Set struct {
	items []Definition
}

// Seed returns the built-in definitions.
func Seed() *Set {
	set, err := Parse(defaultDefinitions)
	if err != nil {
		panic(fmt.Sprintf("embedded agent definitions: %v", err))
	}
	return set
}

// Parse decodes a YAML definitions document.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse agent definitions: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Agents))
	for i := range doc.Agents {
		def := &doc.Agents[i]
		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" {
			return nil, fmt.Errorf("agent definition %d: name is required", i)
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("agent definition %s: duplicate name", def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return &Set{items: doc.Agents}, nil
}

// LoadFile reads the built-in definitions and overlays the file at path.
// An empty path returns the built-in set.
func LoadFile(path string) (*Set, error) {
	set := Seed()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("agent definitions file %s not found", path)
		}
		return nil, err
	}

	overrides, err := Parse(data)
	if err != nil {
		return nil, err
	}
	set.Merge(overrides)
	return set, nil
}

// Merge replaces non-empty fields of same-named definitions and appends new ones.
func (s *Set) Merge(other *Set) {
	for _, def := range other.items {
		idx := s.index(def.Name)
		if idx < 0 {
			s.items = append(s.items, def)
			continue
		}
		cur := &s.items[idx]
		if def.Description != "" {
			cur.Description = def.Description
		}
		if def.Instructions != "" {
			cur.Instructions = def.Instructions
		}
	}
}

// List returns a copy of all definitions.
func (s *Set) List() []Definition {
	return append([]Definition(nil), s.items...)
}

// FindByName looks up a definition.
func (s *Set) FindByName(name string) (Definition, bool) {
	if idx := s.index(name); idx >= 0 {
		return s.items[idx], true
	}
	return Definition{}, false
}

func (s *Set) index(name string) int {
	for i, item := range s.items {
		if item.Name == name {
			return i
		}
	}
	return -1
}
