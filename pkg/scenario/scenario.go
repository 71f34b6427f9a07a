// Package scenario runs a command, extracts the spans it emitted and checks
// them against the scenario's expectations. Running the command is
// delegated to a Runner, so container backends can be plugged in without
// touching the validation pipeline.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/andrewh/tracecheck/pkg/determinism"
	"github.com/andrewh/tracecheck/pkg/expect"
	"gopkg.in/yaml.v3"
)

// File is the YAML form of a scenario.
type File struct {
	Name        string             `yaml:"name"`
	Command     []string           `yaml:"command"`
	Env         map[string]string  `yaml:"env,omitempty"`
	Dir         string             `yaml:"dir,omitempty"`
	Timeout     string             `yaml:"timeout,omitempty"`
	Expect      expect.Config      `yaml:"expect"`
	Determinism determinism.Config `yaml:"determinism,omitempty"`
}

// Scenario is a validated, ready-to-run scenario.
type Scenario struct {
	Name         string
	Command      []string
	Env          map[string]string
	Dir          string
	Timeout      time.Duration
	Expectations expect.Expectations
	Determinism  determinism.Config
}

// LoadFile reads and validates a scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied scenario path is expected
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates scenario YAML. Configuration mistakes are
// reported here, before anything runs.
func Parse(data []byte) (*Scenario, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("scenario file is empty")
		}
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return f.Build()
}

// Build validates the file and resolves durations and expectations.
func (f File) Build() (*Scenario, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return nil, fmt.Errorf("scenario name is required")
	}
	if len(f.Command) == 0 || strings.TrimSpace(f.Command[0]) == "" {
		return nil, fmt.Errorf("scenario %q: command is required", name)
	}

	var timeout time.Duration
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: invalid timeout: %w", name, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("scenario %q: timeout must not be negative, got %s", name, d)
		}
		timeout = d
	}

	exp, err := f.Expect.Build()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", name, err)
	}

	// Construct once to surface config errors now; each run builds its own.
	if _, err := determinism.New(f.Determinism); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", name, err)
	}

	return &Scenario{
		Name:         name,
		Command:      f.Command,
		Env:          f.Env,
		Dir:          f.Dir,
		Timeout:      timeout,
		Expectations: exp,
		Determinism:  f.Determinism,
	}, nil
}
