package labels

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yml
var defaultScheme []byte

// Class is one categorical label an annotator can assign.
type Class struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Scheme is the fixed, small set of classes for a labeling project.
type Scheme struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Classes     []Class `yaml:"classes" json:"classes"`
}

// Default returns the built-in four-class phishing scheme.
func Default() *Scheme {
	s, err := Parse(defaultScheme)
	if err != nil {
		panic(fmt.Sprintf("labels: built-in scheme is invalid: %v", err))
	}
	return s
}

// Load reads a scheme from a YAML file. An empty path returns the default scheme.
func Load(path string) (*Scheme, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label scheme: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scheme. Classes are returned sorted by ID.
func Parse(data []byte) (*Scheme, error) {
	s := &Scheme{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode label scheme: %w", err)
	}
	if len(s.Classes) == 0 {
		return nil, fmt.Errorf("label scheme has no classes")
	}

	seen := make(map[int]bool, len(s.Classes))
	for i := range s.Classes {
		c := &s.Classes[i]
		if c.ID <= 0 {
			return nil, fmt.Errorf("label class id %d must be positive", c.ID)
		}
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("label class %d has no name", c.ID)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate label class id %d", c.ID)
		}
		seen[c.ID] = true
	}
	sort.Slice(s.Classes, func(i, j int) bool { return s.Classes[i].ID < s.Classes[j].ID })

	return s, nil
}

// Valid reports whether id names a class in the scheme.
func (s *Scheme) Valid(id int) bool {
	for _, c := range s.Classes {
		if c.ID == id {
			return true
		}
	}
	return false
}

// ClassName returns the display name for id, or "Class <id>" when unknown.
func (s *Scheme) ClassName(id int) string {
	for _, c := range s.Classes {
		if c.ID == id {
			return c.Name
		}
	}
	return fmt.Sprintf("Class %d", id)
}

// IDs returns the class IDs in ascending order.
func (s *Scheme) IDs() []int {
	ids := make([]int, len(s.Classes))
	for i, c := range s.Classes {
		ids[i] = c.ID
	}
	return ids
}

// Guide renders the scheme as markdown for annotators.
func (s *Scheme) Guide() string {
	var b strings.Builder
	if s.Description != "" {
		b.WriteString(strings.TrimSpace(s.Description))
		b.WriteString("\n\n")
	}
	for _, c := range s.Classes {
		fmt.Fprintf(&b, "- **%d** %s", c.ID, c.Name)
		if c.Description != "" {
			fmt.Fprintf(&b, ": %s", c.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
