package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cleitonmarx/preflight/internal/reflectx"
)

// SourceNamer is implemented by providers that name where their values come from.
// Providers without it are reported by their type name.
type SourceNamer interface {
	Source() string
}

func sourceOf(p Provider) string {
	if n, ok := p.(SourceNamer); ok {
		return n.Source()
	}
	return reflectx.TypeNameOf(p)
}

type layer struct {
	provider Provider
	source   string
}

// CompositeProvider stacks providers by precedence, e.g. --set overrides ahead of
// environment variables. The first provider that has a key supplies it. Any error other
// than ErrNotSet stops the lookup instead of falling through to a lower layer.
type CompositeProvider struct {
	layers []layer
}

// NewCompositeProvider creates a provider that consults providers in order. Nil providers are skipped.
func NewCompositeProvider(providers ...Provider) CompositeProvider {
	layers := make([]layer, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		layers = append(layers, layer{provider: p, source: sourceOf(p)})
	}
	return CompositeProvider{layers: layers}
}

// Get retrieves a configuration value from the first layer that has it.
func (p CompositeProvider) Get(ctx context.Context, name string) (string, error) {
	value, _, err := p.GetWithSource(ctx, name)
	return value, err
}

// GetWithSource retrieves a configuration value and reports the source of the layer that supplied it.
func (p CompositeProvider) GetWithSource(ctx context.Context, name string) (string, string, error) {
	sources := make([]string, 0, len(p.layers))
	for _, l := range p.layers {
		value, err := l.provider.Get(ctx, name)
		switch {
		case err == nil:
			return value, l.source, nil
		case !errors.Is(err, ErrNotSet):
			return "", "", fmt.Errorf("%s: %w", l.source, err)
		}
		sources = append(sources, l.source)
	}
	return "", "", fmt.Errorf("%s is %w (looked in %s)", name, ErrNotSet, strings.Join(sources, ", "))
}
