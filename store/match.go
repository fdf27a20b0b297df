package store

import (
	"fmt"
	"reflect"
	"strings"
)

// Match reports whether doc satisfies q.
//
// Supported query forms:
//   - {"field": value}            deep equality; array fields match if any element equals
//   - {"a.b": value}              dotted paths into nested objects
//   - {"field": {"$op": arg}}     $ne, $in, $nin, $gt, $gte, $lt, $lte, $exists
//   - {"$and": [q...]}, {"$or": [q...]}
func Match(doc Document, q Query) (bool, error) {
	for key, want := range q {
		switch key {
		case "$and", "$or":
			subs, err := subQueries(key, want)
			if err != nil {
				return false, err
			}
			ok, err := matchLogical(doc, key, subs)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("%w: %s", ErrUnknownOperator, key)
		}

		got, exists := getPath(doc, key)
		ok, err := matchField(got, exists, want)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc Document, op string, subs []Query) (bool, error) {
	for _, sub := range subs {
		ok, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		if op == "$or" && ok {
			return true, nil
		}
		if op == "$and" && !ok {
			return false, nil
		}
	}
	return op == "$and", nil
}

func subQueries(op string, v any) ([]Query, error) {
	switch t := v.(type) {
	case []Query:
		return t, nil
	case []map[string]any:
		out := make([]Query, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case []any:
		out := make([]Query, 0, len(t))
		for _, e := range t {
			switch m := e.(type) {
			case map[string]any:
				out = append(out, m)
			case Query:
				out = append(out, m)
			default:
				return nil, fmt.Errorf("store: %s expects a list of queries", op)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("store: %s expects a list of queries", op)
}

func matchField(got any, exists bool, want any) (bool, error) {
	ops, isOps := operatorObject(want)
	if !isOps {
		return exists && equalOrContains(got, want), nil
	}
	for op, arg := range ops {
		ok, err := matchOperator(got, exists, op, arg)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// operatorObject reports whether v is a non-empty map whose keys are all operators.
func operatorObject(v any) (map[string]any, bool) {
	m, ok := objectOf(v)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matchOperator(got any, exists bool, op string, arg any) (bool, error) {
	switch op {
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			return false, fmt.Errorf("store: $exists expects a boolean")
		}
		return exists == want, nil
	case "$ne":
		return !exists || !equalOrContains(got, arg), nil
	case "$in", "$nin":
		list, ok := arrayOf(arg)
		if !ok {
			return false, fmt.Errorf("store: %s expects a list", op)
		}
		found := false
		if exists {
			for _, candidate := range list {
				if equalOrContains(got, candidate) {
					found = true
					break
				}
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false, nil
		}
		c, ok := compare(got, arg)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
}

func equalOrContains(got, want any) bool {
	if equal(got, want) {
		return true
	}
	if arr, ok := arrayOf(got); ok {
		if _, wantArr := arrayOf(want); !wantArr {
			for _, e := range arr {
				if equal(e, want) {
					return true
				}
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if ma, ok := objectOf(a); ok {
		mb, ok := objectOf(b)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !equal(va, vb) {
				return false
			}
		}
		return true
	}
	if sa, ok := arrayOf(a); ok {
		sb, ok := arrayOf(b)
		if !ok || len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers with numbers and strings with strings.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
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

func getPath(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := objectOf(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath assigns v at a dotted path, creating intermediate objects.
func setPath(doc map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Document:
		return t, true
	case Query:
		return t, true
	}
	return nil, false
}

// objectOf reads v as a JSON object. Besides the map types above it accepts
// any map keyed by strings, e.g. map[string]string.
func objectOf(v any) (map[string]any, bool) {
	if m, ok := asMap(v); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// arrayOf reads v as a JSON array: []any or any other slice or array type
// except []byte, which encodes as a string.
func arrayOf(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
