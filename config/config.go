// Package config provides a flexible configuration management system with pluggable providers.
// It supports struct field injection via tags and includes built-in parsers for common types.
package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cleitonmarx/preflight/internal/reflectx"
)

const (
	// tagName is the struct tag key for configuration value names
	tagName = "config"
	// defaultTagName is the struct tag key for default values
	defaultTagName = "default"
)

// ErrNotSet is wrapped by providers when a key has no value. Only this error lets a
// composite provider fall through to the next layer or a struct field fall back to its default.
var ErrNotSet = errors.New("not set")

var (
	parserMu sync.RWMutex
	// parserRegistry maps types to their parsing functions for string value conversion
	parserRegistry map[reflect.Type]func(value string) (any, error)
)

// Provider retrieves configuration values by key.
// Implementations can read from environment variables, command line flags, files, etc.
type Provider interface {
	// Get retrieves the configuration value for the given key.
	// A missing key is reported with an error wrapping ErrNotSet.
	Get(ctx context.Context, name string) (string, error)
}

// ParseFunc is a function that parses a string value into type T.
// Used to convert configuration strings into typed values.
type ParseFunc[T any] func(value string) (T, error)

// RegisterParser registers a custom parser for type T.
// Built-in parsers exist for string, bool, int, int64, float64, time.Duration and []string.
func RegisterParser[T any](parser ParseFunc[T]) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parserRegistry[reflect.TypeFor[T]()] = func(value string) (any, error) {
		return parser(value)
	}
}

func lookupParser(t reflect.Type) (func(string) (any, error), bool) {
	parserMu.RLock()
	defer parserMu.RUnlock()
	p, ok := parserRegistry[t]
	return p, ok
}

// Loader resolves configuration values through a Provider and remembers where every value
// it handed out came from.
type Loader struct {
	provider     Provider
	providerName string

	mu       sync.Mutex
	cache    map[string]string
	accesses map[string]KeyAccess
}

// NewLoader creates a loader backed by provider. A nil provider reads environment variables.
func NewLoader(provider Provider) *Loader {
	if provider == nil {
		provider = NewEnvVarProvider()
	}
	return &Loader{
		provider:     provider,
		providerName: sourceOf(provider),
		cache:        make(map[string]string),
		accesses:     make(map[string]KeyAccess),
	}
}

// getParsedConfigValue retrieves and parses a configuration value using the loader's provider.
func getParsedConfigValue[T any](ctx context.Context, l *Loader, name string) (T, error) {
	var zero T
	typeOfT := reflect.TypeFor[T]()
	parser, exist := lookupParser(typeOfT)
	if !exist {
		return zero, fmt.Errorf("parser for type '%s' does not exist", reflectx.TypeName(typeOfT))
	}
	configValue, err := l.get(ctx, name)
	if err != nil {
		return zero, err
	}
	value, err := parser(configValue)
	if err != nil {
		return zero, fmt.Errorf("invalid value for '%s': %w", name, err)
	}
	return value.(T), nil
}

// Get retrieves and parses a configuration value by key and type.
// Returns an error if the key is not found or parsing fails.
func Get[T any](ctx context.Context, l *Loader, name string) (T, error) {
	value, err := getParsedConfigValue[T](ctx, l, name)
	if err != nil {
		return value, fmt.Errorf("config: %w", err)
	}
	return value, nil
}

// GetWithDefault retrieves a configuration value or returns the default if not found.
// No error is returned; the default is used for any lookup or parse failure.
func GetWithDefault[T any](ctx context.Context, l *Loader, name string, defaultValue T) T {
	value, err := getParsedConfigValue[T](ctx, l, name)
	if err != nil {
		l.recordDefault(name, fmt.Sprint(defaultValue))
		return defaultValue
	}
	return value
}

// LoadStruct injects configuration values into all struct fields tagged with config:"key".
// Untagged struct fields are descended into. A key that is not set takes the value of the
// default tag. Returns error if a key without default is not set, a provider fails or a
// value cannot be parsed.
func LoadStruct[T any](ctx context.Context, l *Loader, target *T) error {
	return reflectx.IterateStructFields(target, tagName, l.loadStructField(ctx))
}

func (l *Loader) loadStructField(ctx context.Context) reflectx.StructFieldFunc {
	return func(fieldValue reflect.Value, structField reflect.StructField, _ reflect.Type) error {
		configName, ok := structField.Tag.Lookup(tagName)
		if !ok {
			return nil
		}

		parser, exists := lookupParser(structField.Type)
		if !exists {
			parser, exists = lookupParser(underlying(structField.Type))
		}
		if !exists {
			return fmt.Errorf("config: parser for type '%s' does not exist", reflectx.TypeName(structField.Type))
		}

		defaultValue, hasDefault := structField.Tag.Lookup(defaultTagName)
		valueStr, err := l.get(ctx, configName)
		if err != nil {
			if !hasDefault || !errors.Is(err, ErrNotSet) {
				return fmt.Errorf("config: error getting value for field '%s': %w", structField.Name, err)
			}
			l.recordDefault(configName, defaultValue)
			valueStr = defaultValue
		}

		value, parseErr := parser(valueStr)
		if parseErr != nil {
			return fmt.Errorf("config: error parsing value for field '%s' (%s): %w", structField.Name, configName, parseErr)
		}

		if err := reflectx.SetFieldValue(fieldValue, structField, value); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return nil
	}
}

// underlying maps named basic types (e.g. type Level string) to their built-in type.
func underlying(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.String:
		return reflect.TypeFor[string]()
	case reflect.Bool:
		return reflect.TypeFor[bool]()
	case reflect.Int:
		return reflect.TypeFor[int]()
	case reflect.Int64:
		return reflect.TypeFor[int64]()
	case reflect.Float64:
		return reflect.TypeFor[float64]()
	}
	return t
}

// get retrieves a configuration value from the provider, caching results and recording their source.
func (l *Loader) get(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	cached, ok := l.cache[key]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	var (
		val    string
		source string
		err    error
	)
	if sp, ok := l.provider.(ProviderWithSource); ok {
		val, source, err = sp.GetWithSource(ctx, key)
	} else {
		val, err = l.provider.Get(ctx, key)
		source = l.providerName
	}
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[key] = val
	l.accesses[key] = KeyAccess{Key: key, Value: val, Source: source}
	return val, nil
}

func splitList(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	parserRegistry = map[reflect.Type]func(value string) (any, error){
		reflect.TypeFor[string]():        func(value string) (any, error) { return value, nil },
		reflect.TypeFor[bool]():          func(value string) (any, error) { return strconv.ParseBool(value) },
		reflect.TypeFor[int]():           func(value string) (any, error) { return strconv.Atoi(value) },
		reflect.TypeFor[int64]():         func(value string) (any, error) { return strconv.ParseInt(value, 10, 64) },
		reflect.TypeFor[float64]():       func(value string) (any, error) { return strconv.ParseFloat(value, 64) },
		reflect.TypeFor[time.Duration](): func(value string) (any, error) { return time.ParseDuration(value) },
		reflect.TypeFor[[]string]():      func(value string) (any, error) { return splitList(value), nil },
	}
}
