// Package reflectx provides reflection utilities for struct field injection.
package reflectx

import (
	"fmt"
	"path"
	"reflect"
)

// TypeName returns a human-readable type name for a reflect.Type.
// Format: "package.TypeName" or just "TypeName" for built-in types.
func TypeName(t reflect.Type) string {
	if t.PkgPath() == "" {
		if t.Name() == "" {
			return t.String()
		}
		return t.Name()
	}
	return fmt.Sprintf("%s.%s", path.Base(t.PkgPath()), t.Name())
}

// TypeNameOf returns the type name of a value using fmt formatting.
func TypeNameOf(v any) string {
	return fmt.Sprintf("%T", v)
}

// StructFieldFunc is called for each struct field during iteration.
// owner is the type of the struct the field belongs to.
type StructFieldFunc func(fieldValue reflect.Value, structField reflect.StructField, owner reflect.Type) error

// IterateStructFields calls fn for each field of a struct pointer.
// Untagged exported struct fields listed in nested are descended into, so grouped settings can
// share one tag namespace. Returns error if target is not a struct pointer or if fn fails.
func IterateStructFields(target any, tag string, fn StructFieldFunc) error {
	v := reflect.ValueOf(target)
	if !IsPointerStruct(v) {
		if !v.IsValid() {
			return fmt.Errorf("target must be a struct pointer, got nil")
		}
		return fmt.Errorf("target must be a struct pointer, got '%s'", TypeName(v.Type()))
	}
	return iterate(v.Elem(), tag, fn)
}

func iterate(v reflect.Value, tag string, fn StructFieldFunc) error {
	t := v.Type()
	for i := range v.NumField() {
		field := t.Field(i)
		if _, tagged := field.Tag.Lookup(tag); !tagged && field.IsExported() && field.Type.Kind() == reflect.Struct {
			if err := iterate(v.Field(i), tag, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(v.Field(i), field, t); err != nil {
			return err
		}
	}
	return nil
}

// SetFieldValue sets a struct field to the provided value, converting between types that share
// an underlying type (e.g. a named string type).
// Returns error if the field is not settable (e.g., unexported field).
func SetFieldValue(field reflect.Value, structField reflect.StructField, value any) error {
	if !field.CanSet() {
		return fmt.Errorf("field '%s' is not settable", structField.Name)
	}
	rv := reflect.ValueOf(value)
	if rv.Type() != field.Type() {
		if !rv.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("field '%s' of type '%s' cannot hold a value of type '%s'",
				structField.Name, TypeName(field.Type()), TypeName(rv.Type()))
		}
		rv = rv.Convert(field.Type())
	}
	field.Set(rv)
	return nil
}

// IsPointerStruct checks if a reflect.Value is a pointer to a struct.
func IsPointerStruct(v reflect.Value) bool {
	return v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Struct
}
