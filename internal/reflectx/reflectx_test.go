package reflectx

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeName(t *testing.T) {
	assert.Equal(t, "int", TypeName(reflect.TypeFor[int]()))
	assert.Equal(t, "string", TypeName(reflect.TypeFor[string]()))
	assert.Equal(t, "[]string", TypeName(reflect.TypeFor[[]string]()))
	assert.Equal(t, "time.Duration", TypeName(reflect.TypeFor[time.Duration]()))
	type myStruct struct{}
	assert.Contains(t, TypeName(reflect.TypeFor[myStruct]()), "myStruct")
	assert.Contains(t, TypeName(reflect.TypeFor[*myStruct]()), "myStruct")
}

func TestTypeNameOf(t *testing.T) {
	assert.Equal(t, "int", TypeNameOf(1))
	assert.Equal(t, "string", TypeNameOf("abc"))
	type foo struct{}
	assert.Equal(t, "reflectx.foo", TypeNameOf(foo{}))
}

func TestIterateStructFields(t *testing.T) {
	type inner struct {
		C bool `cfg:"C"`
	}
	type testStruct struct {
		A     int    `cfg:"A"`
		B     string `cfg:"B"`
		Inner inner
		When  time.Time
	}

	tests := map[string]struct {
		target any
		fields []string
		err    bool
	}{
		"flat-and-nested": {
			target: &testStruct{A: 1, B: "x"},
			// time.Time is descended into but only has unexported fields.
			fields: []string{"A", "B", "C"},
		},
		"not-a-pointer": {
			target: testStruct{},
			err:    true,
		},
		"nil": {
			target: nil,
			err:    true,
		},
		"nil-pointer": {
			target: (*testStruct)(nil),
			err:    true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var fields []string
			err := IterateStructFields(tt.target, "cfg", func(_ reflect.Value, sf reflect.StructField, _ reflect.Type) error {
				if sf.IsExported() {
					fields = append(fields, sf.Name)
				}
				return nil
			})
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestSetFieldValue(t *testing.T) {
	type level string
	type testStruct struct {
		A     int
		Level level
		a     int
	}
	s := &testStruct{a: 10}
	val := reflect.ValueOf(s).Elem()

	set := func(name string, value any) error {
		sf, ok := val.Type().FieldByName(name)
		require.True(t, ok)
		return SetFieldValue(val.FieldByName(name), sf, value)
	}

	require.NoError(t, set("A", 42))
	assert.Equal(t, 42, s.A)

	require.NoError(t, set("Level", "debug"))
	assert.Equal(t, level("debug"), s.Level)

	assert.Error(t, set("A", []string{"x"}))
	assert.Error(t, set("a", 99))
	assert.Equal(t, 10, s.a)
}

func TestIsPointerStruct(t *testing.T) {
	type foo struct{}
	assert.True(t, IsPointerStruct(reflect.ValueOf(&foo{})))
	assert.False(t, IsPointerStruct(reflect.ValueOf(foo{})))
	assert.False(t, IsPointerStruct(reflect.ValueOf(42)))
	assert.False(t, IsPointerStruct(reflect.ValueOf((*foo)(nil))))
}
