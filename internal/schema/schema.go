// Package schema provides the structural validator consulted before any
// record is persisted. A Schema is a closed set of named fields; Validate
// returns a normalized copy of the candidate (defaults applied, types
// checked) or a *ValidationError, never a partially validated object.
package schema

import (
	"fmt"
	"sort"
)

// FieldType enumerates the value types a field may declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
	TypeAny     FieldType = "any"
)

// Field describes one declared field of a schema.
type Field struct {
	Name       string
	Type       FieldType
	Required   bool
	HasDefault bool
	Default    any
}

// Option customizes a field declaration.
type Option func(*Field)

// Required marks the field as mandatory on every validated record.
func Required() Option {
	return func(f *Field) { f.Required = true }
}

// Default supplies a value applied when the field is absent.
func Default(v any) Option {
	return func(f *Field) {
		f.HasDefault = true
		f.Default = v
	}
}

// String declares a string field.
func String(name string, opts ...Option) Field { return newField(name, TypeString, opts) }

// Number declares a numeric field (any integer or float).
func Number(name string, opts ...Option) Field { return newField(name, TypeNumber, opts) }

// Bool declares a boolean field.
func Bool(name string, opts ...Option) Field { return newField(name, TypeBoolean, opts) }

// Object declares a nested-object field.
func Object(name string, opts ...Option) Field { return newField(name, TypeObject, opts) }

// Array declares an array field.
func Array(name string, opts ...Option) Field { return newField(name, TypeArray, opts) }

// Any declares a field that accepts any non-null value.
func Any(name string, opts ...Option) Field { return newField(name, TypeAny, opts) }

func newField(name string, typ FieldType, opts []Option) Field {
	f := Field{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Schema is an immutable set of field declarations.
type Schema struct {
	fields []Field
	byName map[string]Field
}

// New builds a schema from the given field declarations.
func New(fields ...Field) *Schema {
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	return &Schema{fields: fields, byName: byName}
}

// Keys returns the declared field names, sorted.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.byName))
	for name := range s.byName {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether name is a declared field.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Validate checks candidate against the schema and returns a normalized
// copy: defaults filled in, unknown keys rejected, types enforced. The
// candidate itself is never mutated.
func (s *Schema) Validate(candidate map[string]any) (map[string]any, error) {
	for key := range candidate {
		if !s.Has(key) {
			return nil, &ValidationError{Field: key, Reason: "field is not declared in the schema"}
		}
	}

	validated := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		value, present := candidate[f.Name]

		if !present || value == nil {
			if f.HasDefault {
				validated[f.Name] = f.Default
				continue
			}
			if f.Required {
				return nil, &ValidationError{Field: f.Name, Reason: "required field is missing"}
			}
			continue
		}

		if err := checkType(f, value); err != nil {
			return nil, err
		}
		validated[f.Name] = value
	}

	return validated, nil
}

func checkType(f Field, value any) error {
	switch f.Type {
	case TypeAny:
		return nil
	case TypeString:
		if _, ok := value.(string); ok {
			return nil
		}
	case TypeBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	case TypeNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return nil
		}
	case TypeObject:
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case TypeArray:
		if _, ok := value.([]any); ok {
			return nil
		}
	}
	return &ValidationError{
		Field:  f.Name,
		Reason: fmt.Sprintf("expected %s, got %T", f.Type, value),
	}
}
