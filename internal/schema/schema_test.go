package schema

import (
	"errors"
	"reflect"
	"testing"
)

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// assertValidationError fails unless err is a *ValidationError on field
func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if verr.Field != field {
		t.Fatalf("expected error on field %q, got %q", field, verr.Field)
	}
}

func TestValidate(t *testing.T) {
	sch := New(
		String("text", Required()),
		Bool("completed", Default(false)),
		Number("priority"),
	)

	t.Run("accepts a complete candidate", func(t *testing.T) {
		out, err := sch.Validate(map[string]any{
			"text":      "hello",
			"completed": true,
			"priority":  2,
		})
		assertNoError(t, err)
		assertEqual(t, map[string]any{"text": "hello", "completed": true, "priority": 2}, out)
	})

	t.Run("applies defaults for absent fields", func(t *testing.T) {
		out, err := sch.Validate(map[string]any{"text": "hello"})
		assertNoError(t, err)
		assertEqual(t, false, out["completed"])
		if _, present := out["priority"]; present {
			t.Fatal("optional field without default should stay absent")
		}
	})

	t.Run("applies defaults for explicit nil", func(t *testing.T) {
		out, err := sch.Validate(map[string]any{"text": "hello", "completed": nil})
		assertNoError(t, err)
		assertEqual(t, false, out["completed"])
	})

	t.Run("rejects missing required field", func(t *testing.T) {
		_, err := sch.Validate(map[string]any{"completed": true})
		assertValidationError(t, err, "text")
	})

	t.Run("rejects nil required field", func(t *testing.T) {
		_, err := sch.Validate(map[string]any{"text": nil})
		assertValidationError(t, err, "text")
	})

	t.Run("rejects undeclared fields", func(t *testing.T) {
		_, err := sch.Validate(map[string]any{"text": "hello", "color": "red"})
		assertValidationError(t, err, "color")
	})

	t.Run("rejects type mismatches", func(t *testing.T) {
		_, err := sch.Validate(map[string]any{"text": 42})
		assertValidationError(t, err, "text")

		_, err = sch.Validate(map[string]any{"text": "ok", "completed": "yes"})
		assertValidationError(t, err, "completed")

		_, err = sch.Validate(map[string]any{"text": "ok", "priority": "high"})
		assertValidationError(t, err, "priority")
	})

	t.Run("number accepts integers and floats", func(t *testing.T) {
		for _, v := range []any{1, int64(2), 3.5, float32(4)} {
			_, err := sch.Validate(map[string]any{"text": "ok", "priority": v})
			assertNoError(t, err)
		}
	})

	t.Run("does not mutate the candidate", func(t *testing.T) {
		candidate := map[string]any{"text": "hello"}
		_, err := sch.Validate(candidate)
		assertNoError(t, err)
		assertEqual(t, map[string]any{"text": "hello"}, candidate)
	})
}

func TestValidateContainers(t *testing.T) {
	sch := New(
		Object("meta"),
		Array("tags"),
		Any("extra"),
	)

	t.Run("object and array types", func(t *testing.T) {
		out, err := sch.Validate(map[string]any{
			"meta": map[string]any{"k": "v"},
			"tags": []any{"a", "b"},
		})
		assertNoError(t, err)
		assertEqual(t, map[string]any{"k": "v"}, out["meta"])
	})

	t.Run("any accepts everything non-nil", func(t *testing.T) {
		for _, v := range []any{"s", 1, true, []any{}, map[string]any{}} {
			_, err := sch.Validate(map[string]any{"extra": v})
			assertNoError(t, err)
		}
	})

	t.Run("rejects wrong container types", func(t *testing.T) {
		_, err := sch.Validate(map[string]any{"meta": []any{}})
		assertValidationError(t, err, "meta")

		_, err = sch.Validate(map[string]any{"tags": map[string]any{}})
		assertValidationError(t, err, "tags")
	})
}
