// Package schema validates documents against a JSON Schema (draft-07 subset).
package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// FieldError is a single violation at a JSON path such as "$.address.zip".
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) String() string {
	return e.Path + ": " + e.Message
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add records a violation at path.
func (e *ValidationError) Add(path, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Err returns e if it holds any violation, else nil.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Validate checks a document against schema and returns a *ValidationError
// listing every violation, or nil if the document passes or schema is nil.
//
// Supported JSON Schema keywords:
//   - type (string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties (false only)
//   - items (for arrays)
//   - minimum, maximum, exclusiveMinimum, exclusiveMaximum
//   - minLength, maxLength (counted in runes), pattern
//   - minItems, maxItems
//   - enum
func Validate(schema map[string]any, doc map[string]any) error {
	if schema == nil {
		return nil
	}
	v := &ValidationError{}
	check(v, schema, doc, "$")
	return v.Err()
}

func check(v *ValidationError, schema map[string]any, value any, path string) {
	value = plain(value)
	if t, ok := schema["type"].(string); ok {
		if !hasType(t, value) {
			v.Add(path, "expected type %q, got %q", t, jsonType(value))
			return
		}
	}

	if allowed, ok := schema["enum"].([]any); ok && !inEnum(allowed, value) {
		v.Add(path, "value not in enum %v", allowed)
	}

	if n, ok := toFloat(value); ok {
		checkNumber(v, schema, n, path)
		return
	}
	switch val := value.(type) {
	case map[string]any:
		checkObject(v, schema, val, path)
	case []any:
		checkArray(v, schema, val, path)
	case string:
		checkString(v, schema, val, path)
	}
}

func hasType(expected string, value any) bool {
	actual := jsonType(value)
	switch expected {
	case "integer":
		f, ok := toFloat(value)
		return ok && f == float64(int64(f))
	case "number":
		return actual == "number" || actual == "integer"
	}
	return actual == expected
}

func jsonType(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	default:
		return reflect.TypeOf(v).String()
	}
}

func inEnum(allowed []any, value any) bool {
	for _, a := range allowed {
		if reflect.DeepEqual(a, value) {
			return true
		}
		fa, okA := toFloat(a)
		fv, okV := toFloat(value)
		if okA && okV && fa == fv {
			return true
		}
	}
	return false
}

func checkObject(v *ValidationError, schema map[string]any, obj map[string]any, path string) {
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if field, ok := r.(string); ok {
				if _, exists := obj[field]; !exists {
					v.Add(path, "missing required field %q", field)
				}
			}
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for field, propSchema := range props {
		val, exists := obj[field]
		if !exists {
			continue
		}
		if ps, ok := propSchema.(map[string]any); ok {
			check(v, ps, val, path+"."+field)
		}
	}

	if ap, ok := schema["additionalProperties"].(bool); ok && !ap {
		var extra []string
		for field := range obj {
			if _, defined := props[field]; !defined {
				extra = append(extra, field)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			v.Add(path, "additional properties not allowed: %s", strings.Join(extra, ", "))
		}
	}
}

func checkArray(v *ValidationError, schema map[string]any, arr []any, path string) {
	if min, ok := toFloat(schema["minItems"]); ok && float64(len(arr)) < min {
		v.Add(path, "array length %d is less than minItems %v", len(arr), min)
	}
	if max, ok := toFloat(schema["maxItems"]); ok && float64(len(arr)) > max {
		v.Add(path, "array length %d is greater than maxItems %v", len(arr), max)
	}
	if itemSchema, ok := schema["items"].(map[string]any); ok {
		for i, elem := range arr {
			check(v, itemSchema, elem, fmt.Sprintf("%s[%d]", path, i))
		}
	}
}

func checkString(v *ValidationError, schema map[string]any, s string, path string) {
	n := utf8.RuneCountInString(s)
	if min, ok := toFloat(schema["minLength"]); ok && float64(n) < min {
		v.Add(path, "string length %d is less than minLength %v", n, min)
	}
	if max, ok := toFloat(schema["maxLength"]); ok && float64(n) > max {
		v.Add(path, "string length %d is greater than maxLength %v", n, max)
	}
	if pattern, ok := schema["pattern"].(string); ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			v.Add(path, "invalid pattern %q: %v", pattern, err)
		} else if !re.MatchString(s) {
			v.Add(path, "%q does not match pattern %q", s, pattern)
		}
	}
}

func checkNumber(v *ValidationError, schema map[string]any, n float64, path string) {
	if min, ok := toFloat(schema["minimum"]); ok && n < min {
		v.Add(path, "%v is less than minimum %v", n, min)
	}
	if max, ok := toFloat(schema["maximum"]); ok && n > max {
		v.Add(path, "%v is greater than maximum %v", n, max)
	}
	if min, ok := toFloat(schema["exclusiveMinimum"]); ok && n <= min {
		v.Add(path, "%v is not greater than exclusiveMinimum %v", n, min)
	}
	if max, ok := toFloat(schema["exclusiveMaximum"]); ok && n >= max {
		v.Add(path, "%v is not less than exclusiveMaximum %v", n, max)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// plain rewrites string-keyed maps and slices of any element type, such as
// map[string]string or []string, into map[string]any and []any one level
// deep. []byte is left alone.
func plain(v any) any {
	switch v.(type) {
	case nil, map[string]any, []any, []byte:
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return m
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return v
}
