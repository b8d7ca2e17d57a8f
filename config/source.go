package config

import (
	"context"
	"slices"
	"strings"
)

// DefaultSource is the source reported for keys that fell back to a default value.
const DefaultSource = "default"

// ProviderWithSource is an optional interface that providers can implement to report their source.
// For example, CompositeProvider reports which sub-provider supplied the value.
type ProviderWithSource interface {
	// GetWithSource retrieves a configuration value and reports its provider source.
	GetWithSource(ctx context.Context, key string) (string, string, error)
}

// KeyAccess records the value of a configuration key and which source supplied it.
type KeyAccess struct {
	Key   string
	Value string
	// Source is the provider type name, or DefaultSource.
	Source string
}

// Default reports whether the key fell back to its default value.
func (a KeyAccess) Default() bool {
	return a.Source == DefaultSource
}

func (l *Loader) recordDefault(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accesses[key]; !ok {
		l.accesses[key] = KeyAccess{Key: key, Value: value, Source: DefaultSource}
	}
}

// Accesses returns every key resolved by the loader, sorted by key.
func (l *Loader) Accesses() []KeyAccess {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]KeyAccess, 0, len(l.accesses))
	for _, a := range l.accesses {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b KeyAccess) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out
}
