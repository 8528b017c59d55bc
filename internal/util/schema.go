package util

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// ValidationError reports a tool argument that does not match its schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives a JSON object schema from the exported fields of a
// struct value or pointer. Field names follow the json tag, a description
// tag becomes the property description, and fields that are neither pointers
// nor omitempty are required. Non-struct input yields an empty object schema.
func CreateSchema(structType any) map[string]any {
	properties := map[string]any{}
	schema := map[string]any{"type": "object", "properties": properties}

	t := reflect.TypeOf(structType)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() || field.Anonymous {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		prop := map[string]any{"type": jsonType(field.Type)}
		if d := field.Tag.Get("description"); d != "" {
			prop["description"] = d
		}
		properties[name] = prop

		optional := field.Type.Kind() == reflect.Pointer || slices.Contains(strings.Split(opts, ","), "omitempty")
		if !optional {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return jsonType(t.Elem())
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return "string"
}

// ValidateParameters checks decoded tool arguments against a schema built by
// CreateSchema or decoded from JSON: required fields must be present and
// declared properties must carry the declared type. Extra fields pass.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range requiredFields(schema["required"]) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		prop, _ := properties[name].(map[string]any)
		want, _ := prop["type"].(string)
		if want == "" || value == nil {
			continue
		}
		if !matchesType(value, want) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", want, value),
			}
		}
	}
	return nil
}

// requiredFields accepts both the []string produced by CreateSchema and the
// []any produced by decoding a schema from JSON.
func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// matchesType reports whether a decoded JSON value fits a schema type.
// Numbers decoded from JSON arrive as float64, so integral floats count as
// integers.
func matchesType(value any, want string) bool {
	rv := reflect.ValueOf(value)
	switch want {
	case "string":
		return rv.Kind() == reflect.String
	case "boolean":
		return rv.Kind() == reflect.Bool
	case "integer":
		switch {
		case rv.CanInt(), rv.CanUint():
			return true
		case rv.CanFloat():
			f := rv.Float()
			return f == float64(int64(f))
		}
		return false
	case "number":
		return rv.CanInt() || rv.CanUint() || rv.CanFloat()
	case "array":
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case "object":
		return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct
	}
	return true
}
