// Package pathexpr resolves dotted path expressions against nested data
// decoded from JSON or YAML (maps, slices and scalars) or held in Go structs.
//
// Three forms are supported:
//
//	customer.firstName      plain dot access
//	products[0].name        fixed index on a top-level array
//	products[*].name        wildcard projection over a top-level array
//
// Only a single index or wildcard per path is understood. Anything else
// resolves to "not found" rather than an error.
package pathexpr

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const wildcard = "[*]"

var indexed = regexp.MustCompile(`^(\w+)\[(\d+)\](?:\.(.+))?$`)

// Resolve walks data along path. The boolean result is false when any
// segment is missing, the data is nil or the path is empty.
func Resolve(data any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	if strings.Contains(path, wildcard) {
		return resolveWildcard(data, path)
	}

	if strings.Contains(path, "[") && strings.Contains(path, "]") {
		if m := indexed.FindStringSubmatch(path); m != nil {
			return resolveIndexed(data, m[1], m[2], m[3])
		}
	}

	return walk(data, path)
}

// resolveWildcard maps the remainder of the path over every element of the
// array found before "[*]". Elements that do not resolve become nil.
func resolveWildcard(data any, path string) (any, bool) {
	arrayPath, rest, hasRest := strings.Cut(path, wildcard+".")
	if !hasRest {
		arrayPath = strings.TrimSuffix(path, wildcard)
	}

	arr, ok := walk(data, arrayPath)
	if !ok {
		return nil, false
	}
	items, ok := asSlice(arr)
	if !ok {
		return nil, false
	}

	out := make([]any, len(items))
	for i, item := range items {
		if !hasRest {
			out[i] = item
			continue
		}
		if v, ok := walk(item, rest); ok {
			out[i] = v
		}
	}
	return out, true
}

func resolveIndexed(data any, name, idx, rest string) (any, bool) {
	arr, ok := field(data, name)
	if !ok {
		return nil, false
	}
	items, ok := asSlice(arr)
	if !ok {
		return nil, false
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i >= len(items) {
		return nil, false
	}
	if rest == "" {
		return items[i], true
	}
	return walk(items[i], rest)
}

// walk follows dot-separated segments, stopping at the first miss.
func walk(data any, path string) (any, bool) {
	cur := data
	for _, part := range strings.Split(path, ".") {
		next, ok := field(cur, part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// field looks up a single segment. Arrays and strings answer "length";
// arrays also accept a numeric segment. Struct fields match their json tag
// name, or their Go name ignoring case.
func field(obj any, key string) (any, bool) {
	switch v := obj.(type) {
	case nil:
		return nil, false
	case map[string]any:
		val, ok := v[key]
		return val, ok
	case map[string]string:
		val, ok := v[key]
		return val, ok
	case string:
		if key == "length" {
			return utf8.RuneCountInString(v), true
		}
		return nil, false
	}

	if items, ok := asSlice(obj); ok {
		if key == "length" {
			return len(items), true
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(items) {
			return items[i], true
		}
		return nil, false
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch {
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case rv.Kind() == reflect.Struct:
		return structField(rv, key)
	}
	return nil, false
}

func structField(rv reflect.Value, key string) (any, bool) {
	t := rv.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == key || (name == "" && strings.EqualFold(f.Name, key)) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

// asSlice normalizes any slice or array value to []any.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
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
