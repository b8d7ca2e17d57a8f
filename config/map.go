package config

import (
	"context"
	"fmt"
	"strings"
)

// OverrideSource is the source reported for values given with --set.
const OverrideSource = "--set"

// MapProvider serves configuration values from an in-memory map.
// The CLI builds one from repeated --set KEY=VALUE flags; an empty value is an explicit override.
type MapProvider map[string]string

// NewMapProvider creates a provider from KEY=VALUE assignments.
// Later assignments of the same key win.
func NewMapProvider(assignments ...string) (MapProvider, error) {
	p := make(MapProvider, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected KEY=VALUE", a)
		}
		p[key] = value
	}
	return p, nil
}

// Get retrieves the value assigned to name.
func (p MapProvider) Get(_ context.Context, name string) (string, error) {
	value, ok := p[name]
	if !ok {
		return "", fmt.Errorf("key %s is %w", name, ErrNotSet)
	}
	return value, nil
}

// Source implements SourceNamer.
func (MapProvider) Source() string {
	return OverrideSource
}
