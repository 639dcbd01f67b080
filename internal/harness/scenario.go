package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario drives one editor through a sequence of writes and checks the
// resulting array, grid and journaled trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project is the CUE project directory, relative to the scenario file.
	Project string `yaml:"project"`

	// Editor names the project editor to start.
	Editor string `yaml:"editor"`

	// SessionToken is the fixed session token the engine logs under.
	// Empty means testutil.DefaultSessionToken.
	SessionToken string `yaml:"session_token,omitempty"`

	// Steps are applied in order, each followed by a settle.
	Steps []Step `yaml:"steps"`

	// Expect checks the final array and grid contents.
	Expect *Expectation `yaml:"expect,omitempty"`

	// Assertions validate the trace and the final structure.
	// Supported types: write_count, rows, subscriptions, slot_empty
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one external action. Exactly one field must be set.
type Step struct {
	// WriteArray replaces the whole array value. A scalar here writes a
	// value of the wrong shape, which the engine must ignore.
	WriteArray any `yaml:"write_array,omitempty"`

	// WriteElement patches one array element.
	WriteElement *ElementWrite `yaml:"write_element,omitempty"`

	// WriteCell writes one grid cell, as an operator editing the grid would.
	WriteCell *CellWrite `yaml:"write_cell,omitempty"`

	// Resync re-pushes the whole array into the grid.
	Resync bool `yaml:"resync,omitempty"`

	// Stop tears the editor down.
	Stop bool `yaml:"stop,omitempty"`

	// Start starts the editor again after a stop.
	Start bool `yaml:"start,omitempty"`
}

// ElementWrite is an element patch of the array.
type ElementWrite struct {
	Index int `yaml:"index"`
	Value any `yaml:"value"`
}

// CellWrite is a write to the cell of one grid row.
type CellWrite struct {
	Row   int `yaml:"row"`
	Value any `yaml:"value"`
}

// Expectation holds the expected final contents. Nil fields are not checked.
type Expectation struct {
	Array []any `yaml:"array,omitempty"`
	Cells []any `yaml:"cells,omitempty"`
}

// Assertion validates the trace or final structure.
type Assertion struct {
	// Type specifies the assertion type:
	// - "write_count": number of journaled writes to Target
	// - "rows": number of grid rows
	// - "subscriptions": number of active observer registrations
	// - "slot_empty": the grid slot holds no reference
	Type string `yaml:"type"`

	// Target is "array", "cell" or "slot" (used by write_count).
	Target string `yaml:"target,omitempty"`

	// Sender restricts write_count to "external" or "engine" writes.
	Sender string `yaml:"sender,omitempty"`

	// Count is the expected number (write_count, rows, subscriptions).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertWriteCount    = "write_count"
	AssertRows          = "rows"
	AssertSubscriptions = "subscriptions"
	AssertSlotEmpty     = "slot_empty"
)

// Write targets and sender roles.
const (
	TargetArray = "array"
	TargetCell  = "cell"
	TargetSlot  = "slot"

	RoleExternal = "external"
	RoleEngine   = "engine"
)

// LoadScenario reads and parses a scenario YAML file. The project path is
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Project != "" && !filepath.IsAbs(scenario.Project) {
		scenario.Project = filepath.Join(filepath.Dir(path), scenario.Project)
	}
	if _, err := os.Stat(scenario.Project); err != nil {
		return nil, fmt.Errorf("invalid scenario: project not found: %s", scenario.Project)
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML. The project path is
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Project == "" {
		return fmt.Errorf("project is required")
	}
	if s.Editor == "" {
		return fmt.Errorf("editor is required")
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	for i, step := range s.Steps {
		if n := step.actions(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, n)
		}
		if step.WriteElement != nil && step.WriteElement.Value == nil {
			return fmt.Errorf("steps[%d].write_element: value is required", i)
		}
		if step.WriteCell != nil && step.WriteCell.Value == nil {
			return fmt.Errorf("steps[%d].write_cell: value is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.WriteArray != nil,
		s.WriteElement != nil,
		s.WriteCell != nil,
		s.Resync,
		s.Stop,
		s.Start,
	} {
		if set {
			n++
		}
	}
	return n
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertWriteCount:
		switch a.Target {
		case TargetArray, TargetCell, TargetSlot:
		default:
			return fmt.Errorf("assertions[%d]: write_count target must be array, cell or slot, got %q", index, a.Target)
		}
		switch a.Sender {
		case "", RoleExternal, RoleEngine:
		default:
			return fmt.Errorf("assertions[%d]: sender must be external or engine, got %q", index, a.Sender)
		}
	case AssertRows, AssertSubscriptions, AssertSlotEmpty:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}

// FindScenarios walks dir for .yaml and .yml scenario files. A non-empty
// filter is a glob matched against the file name without its extension.
// Files under golden directories are skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
