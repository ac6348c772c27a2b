package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bspgen/internal/generate"
	"github.com/roach88/bspgen/internal/ir"
)

// Scenario defines a board conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Job holds the generation options. Its out key is ignored; the
	// harness always writes into a scratch directory.
	Job generate.Job `yaml:",inline"`

	// ExpectError is the error code generation must fail with.
	ExpectError ir.ErrorCode `yaml:"expect_error,omitempty"`

	// Assertions validate the generated IR and files.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the scenario file's directory; relative paths start there.
	dir string
}

// Assertion validates one property of a generation.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Pin    string `yaml:"pin,omitempty"`
	Signal string `yaml:"signal,omitempty"`
	AF     *int   `yaml:"af,omitempty"`
	Label  string `yaml:"label,omitempty"`

	// Name, Class, Core and Signals describe a peripheral. Core is also
	// the expected clock owner for init_by.
	Name    string            `yaml:"name,omitempty"`
	Class   string            `yaml:"class,omitempty"`
	Core    string            `yaml:"core,omitempty"`
	Signals map[string]string `yaml:"signals,omitempty"`

	File     string `yaml:"file,omitempty"`
	Contains string `yaml:"contains,omitempty"`
	Count    *int   `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPinAF        = "pin_af"
	AssertPinLabel     = "pin_label"
	AssertPeripheral   = "peripheral"
	AssertInitBy       = "init_by"
	AssertFileContains = "file_contains"
	AssertFileCount    = "file_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)

	if _, err := os.Stat(s.Request().Input); err != nil {
		return nil, fmt.Errorf("invalid scenario: input not found: %s", s.Job.Input)
	}
	return s, nil
}

// ParseScenario decodes scenario YAML. Relative paths are taken from the
// current directory until the scenario is loaded from a file.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Request returns the generation request for s, without output directory
// or history.
func (s *Scenario) Request() generate.Request {
	req, _ := s.Job.Request(s.dir)
	req.OutDir = ""
	req.History = ""
	return req
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	// Job.Request checks layout, owners and cores.
	if _, err := s.Job.Request(""); err != nil {
		return err
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPinAF:
		if a.Pin == "" || a.Signal == "" || a.AF == nil {
			return fmt.Errorf("assertions[%d]: pin, signal and af are required for pin_af", index)
		}
	case AssertPinLabel:
		if a.Pin == "" || a.Label == "" {
			return fmt.Errorf("assertions[%d]: pin and label are required for pin_label", index)
		}
	case AssertPeripheral:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for peripheral", index)
		}
	case AssertInitBy:
		if a.Core != "" {
			if _, ok := ir.ParseCore(a.Core); !ok {
				return fmt.Errorf("assertions[%d]: invalid core %q", index, a.Core)
			}
		}
	case AssertFileContains:
		if a.File == "" || a.Contains == "" {
			return fmt.Errorf("assertions[%d]: file and contains are required for file_contains", index)
		}
	case AssertFileCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for file_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
