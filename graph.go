package preflight

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Graph orders services into dependency stages.
//
// Each stage implicitly depends on every prior stage: all required services of the prior
// stages must be ready before it is attempted. A Graph is immutable once built.
type Graph struct {
	defaults Policy
	stages   []Stage
}

// NewGraph validates stages and builds an immutable Graph.
// Services without a policy inherit defaults; zero fields of defaults fall back to DefaultPolicy.
// Any misconfiguration is returned as a *ConfigError.
func NewGraph(defaults Policy, stages ...Stage) (*Graph, error) {
	defaults = defaults.WithDefaults(DefaultPolicy())
	if err := defaults.Validate(); err != nil {
		return nil, &ConfigError{Component: "default policy", Err: err}
	}
	if len(stages) == 0 {
		return nil, newConfigError("", "stage graph is empty")
	}

	g := &Graph{defaults: defaults, stages: make([]Stage, 0, len(stages))}
	seen := make(map[string]struct{})
	for i, st := range stages {
		name := st.Name
		if name == "" {
			name = fmt.Sprintf("stage-%d", i+1)
		}
		if len(st.Services) == 0 {
			return nil, newConfigError(name, "stage has no services")
		}
		built := Stage{Name: name, Services: make([]Service, 0, len(st.Services))}
		for _, svc := range st.Services {
			if _, dup := seen[svc.Name]; dup {
				return nil, newConfigError(svc.Name, "duplicate service name")
			}
			resolved, err := resolveService(svc, defaults, false)
			if err != nil {
				return nil, err
			}
			seen[svc.Name] = struct{}{}
			built.Services = append(built.Services, resolved)
		}
		g.stages = append(g.stages, built)
	}
	return g, nil
}

// Stages returns the stages in dependency order. The returned slice is a copy.
func (g *Graph) Stages() []Stage {
	out := make([]Stage, len(g.stages))
	for i, st := range g.stages {
		out[i] = Stage{Name: st.Name, Services: cloneServices(st.Services)}
	}
	return out
}

// DefaultPolicy returns the policy applied to services that do not set one.
func (g *Graph) DefaultPolicy() Policy {
	return g.defaults
}

// Len returns the number of services across all stages.
func (g *Graph) Len() int {
	n := 0
	for _, st := range g.stages {
		n += len(st.Services)
	}
	return n
}

// Deadline returns the aggregate deadline of a run: the sum over stages of the largest
// service total timeout in the stage. Services in a stage run in parallel, so a stage
// cannot take longer than its slowest service.
func (g *Graph) Deadline() time.Duration {
	var total time.Duration
	for _, st := range g.stages {
		var longest time.Duration
		for _, svc := range st.Services {
			longest = max(longest, svc.Policy.TotalTimeout)
		}
		total += longest
	}
	return total
}

// resolveService validates svc and returns a copy with its effective policy.
func resolveService(svc Service, defaults Policy, member bool) (Service, error) {
	if strings.TrimSpace(svc.Name) == "" {
		return Service{}, newConfigError("", "service name is empty")
	}
	switch svc.Kind {
	case KindRuntime:
	case KindContainer:
		if strings.TrimSpace(svc.Endpoint) == "" {
			return Service{}, newConfigError(svc.Name, "container name is empty")
		}
	case KindHTTP, KindModel, KindStream:
		if err := validateURL(svc.Endpoint); err != nil {
			return Service{}, &ConfigError{Component: svc.Name, Err: err}
		}
		if svc.Kind == KindModel && strings.ContainsAny(svc.ModelName(), "/?#") {
			return Service{}, newConfigError(svc.Name, "invalid model name %q", svc.ModelName())
		}
	case KindComposite:
		if member {
			return Service{}, newConfigError(svc.Name, "composite services cannot be nested")
		}
		if len(svc.Members) == 0 {
			return Service{}, newConfigError(svc.Name, "composite service has no members")
		}
	default:
		return Service{}, newConfigError(svc.Name, "unknown service kind %q", svc.Kind)
	}

	out := svc
	out.Policy = svc.Policy.WithDefaults(defaults)
	if err := out.Policy.Validate(); err != nil {
		return Service{}, &ConfigError{Component: svc.Name, Err: err}
	}

	if svc.Kind == KindComposite {
		out.Members = make([]Service, 0, len(svc.Members))
		names := make(map[string]struct{}, len(svc.Members))
		for _, m := range svc.Members {
			if _, dup := names[m.Name]; dup {
				return Service{}, newConfigError(svc.Name, "duplicate member %q", m.Name)
			}
			names[m.Name] = struct{}{}
			resolved, err := resolveService(m, out.Policy, true)
			if err != nil {
				return Service{}, err
			}
			out.Members = append(out.Members, resolved)
		}
	}
	return out, nil
}

// validateURL checks that endpoint is an absolute http(s) URL.
func validateURL(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("unparsable endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}

func cloneServices(in []Service) []Service {
	out := slices.Clone(in)
	for i := range out {
		if out[i].Members != nil {
			out[i].Members = cloneServices(out[i].Members)
		}
	}
	return out
}
