package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvSource is the source reported for values read from environment variables.
const EnvSource = "env"

// EnvVarProvider reads configuration from environment variables.
// Values are trimmed and a variable set to an empty string counts as unset.
type EnvVarProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvVarProvider creates a provider over the process environment.
func NewEnvVarProvider() EnvVarProvider {
	return EnvVarProvider{lookup: os.LookupEnv}
}

// NewEnvVarProviderFrom creates a provider over KEY=VALUE entries in the os.Environ format
// instead of the process environment. Later entries of the same key win.
func NewEnvVarProviderFrom(environ []string) EnvVarProvider {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			vars[key] = value
		}
	}
	return EnvVarProvider{lookup: func(name string) (string, bool) {
		value, ok := vars[name]
		return value, ok
	}}
}

// Get retrieves the value of the environment variable name.
func (p EnvVarProvider) Get(_ context.Context, name string) (string, error) {
	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", fmt.Errorf("environment variable %s is %w", name, ErrNotSet)
	}
	return value, nil
}

// Source implements SourceNamer.
func (EnvVarProvider) Source() string {
	return EnvSource
}
