// Package stack describes the services checked by the preflight command, either from a YAML
// stack file or from the built-in inference stack configured through settings.
package stack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleitonmarx/preflight"
)

// File is the YAML representation of a stage graph.
//
//	defaults:
//	  max_attempts: 30
//	  total_timeout: 60s
//	stages:
//	  - name: inference
//	    services:
//	      - name: triton
//	        kind: http
//	        endpoint: http://localhost:8000
type File struct {
	Defaults PolicySpec  `yaml:"defaults,omitempty"`
	Stages   []StageSpec `yaml:"stages"`
}

// StageSpec is one stage of a stack file.
type StageSpec struct {
	Name     string        `yaml:"name,omitempty"`
	Services []ServiceSpec `yaml:"services"`
}

// ServiceSpec is one service of a stack file. Services are required unless required is false.
type ServiceSpec struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Endpoint string        `yaml:"endpoint,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	Required *bool         `yaml:"required,omitempty"`
	Hint     string        `yaml:"hint,omitempty"`
	Policy   PolicySpec    `yaml:"policy,omitempty"`
	Members  []ServiceSpec `yaml:"members,omitempty"`
}

// PolicySpec is the YAML form of preflight.Policy. Zero fields inherit the defaults.
type PolicySpec struct {
	MaxAttempts    int      `yaml:"max_attempts,omitempty"`
	AttemptTimeout Duration `yaml:"attempt_timeout,omitempty"`
	Interval       Duration `yaml:"interval,omitempty"`
	TotalTimeout   Duration `yaml:"total_timeout,omitempty"`
	Multiplier     float64  `yaml:"multiplier,omitempty"`
	MaxInterval    Duration `yaml:"max_interval,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("2s", "1m30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// IsZero lets omitempty drop unset durations.
func (d Duration) IsZero() bool {
	return d == 0
}

// Load reads and parses the stack file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading stack file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("parsing stack file %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a stack file. Unknown fields are rejected.
func Parse(data []byte) (File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, errors.New("stack file is empty")
		}
		return File{}, err
	}
	return f, nil
}

// Marshal encodes f as YAML.
func (f File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Graph converts the file into a validated stage graph.
func (f File) Graph() (*preflight.Graph, error) {
	stages := make([]preflight.Stage, 0, len(f.Stages))
	for _, st := range f.Stages {
		services := make([]preflight.Service, 0, len(st.Services))
		for _, svc := range st.Services {
			services = append(services, svc.service())
		}
		stages = append(stages, preflight.Stage{Name: st.Name, Services: services})
	}
	return preflight.NewGraph(f.Defaults.policy(), stages...)
}

func (s ServiceSpec) service() preflight.Service {
	svc := preflight.Service{
		Name:     s.Name,
		Kind:     preflight.Kind(s.Kind),
		Endpoint: s.Endpoint,
		Model:    s.Model,
		Required: s.Required == nil || *s.Required,
		Hint:     s.Hint,
		Policy:   s.Policy.policy(),
	}
	for _, m := range s.Members {
		svc.Members = append(svc.Members, m.service())
	}
	return svc
}

func (p PolicySpec) policy() preflight.Policy {
	return preflight.Policy{
		MaxAttempts:    p.MaxAttempts,
		AttemptTimeout: time.Duration(p.AttemptTimeout),
		Interval:       time.Duration(p.Interval),
		TotalTimeout:   time.Duration(p.TotalTimeout),
		Multiplier:     p.Multiplier,
		MaxInterval:    time.Duration(p.MaxInterval),
	}
}

// Describe converts a graph back into its file form, with every policy resolved.
func Describe(g *preflight.Graph) File {
	f := File{Defaults: policySpec(g.DefaultPolicy())}
	for _, st := range g.Stages() {
		spec := StageSpec{Name: st.Name}
		for _, svc := range st.Services {
			spec.Services = append(spec.Services, serviceSpec(svc))
		}
		f.Stages = append(f.Stages, spec)
	}
	return f
}

func serviceSpec(svc preflight.Service) ServiceSpec {
	required := svc.Required
	spec := ServiceSpec{
		Name:     svc.Name,
		Kind:     string(svc.Kind),
		Endpoint: svc.Endpoint,
		Model:    svc.Model,
		Required: &required,
		Hint:     svc.Hint,
		Policy:   policySpec(svc.Policy),
	}
	for _, m := range svc.Members {
		spec.Members = append(spec.Members, serviceSpec(m))
	}
	return spec
}

func policySpec(p preflight.Policy) PolicySpec {
	return PolicySpec{
		MaxAttempts:    p.MaxAttempts,
		AttemptTimeout: Duration(p.AttemptTimeout),
		Interval:       Duration(p.Interval),
		TotalTimeout:   Duration(p.TotalTimeout),
		Multiplier:     p.Multiplier,
		MaxInterval:    Duration(p.MaxInterval),
	}
}
