package smkes

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeyDeriver is the external interface of spec §4.5: a pure function
// (key, params) -> cache_key that is deterministic for logically equal
// params regardless of the caller's internal ordering.
type KeyDeriver interface {
	DeriveKey(key string, params map[string]any) string
}

// defaultKeyDeriver sorts the param names and serializes each value with
// a deterministic reflection walk (slices as [a,b], maps with sorted keys
// as {k=v}, exported struct fields as {Field:v}), emitting
// "{key}:{name=value,...}"; with no params it returns the bare key. Kinds
// the walk does not cover (function values, channels, ...) are
// JSON-encoded, and those that fail to marshal are described by their
// type name instead of panicking.
type defaultKeyDeriver struct{}

// NewDefaultKeyDeriver returns the canonical KeyDeriver implementation.
func NewDefaultKeyDeriver() KeyDeriver {
	return defaultKeyDeriver{}
}

// DeriveKey implements KeyDeriver.
func (defaultKeyDeriver) DeriveKey(key string, params map[string]any) string {
	if len(params) == 0 {
		return key
	}
	return key + ":" + serializeParams(params)
}

func serializeParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, serializeValue(params[k])))
	}

	return "{" + strings.Join(pairs, ",") + "}"
}

// serializeValue mirrors the teacher's reflection dispatch for
// deterministic, panic-free serialization of arbitrary parameter values.
func serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return serializeSlice(rv)
	case reflect.Array:
		return serializeSlice(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return serializeMap(rv)
	case reflect.Struct:
		return serializeStruct(rv, rt)
	case reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return serializeValue(rv.Elem().Interface())
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprintf("%v", v)
	default:
		return jsonFallback(v, rv, rt)
	}
}

func serializeSlice(rv reflect.Value) string {
	n := rv.Len()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = serializeValue(rv.Index(i).Interface())
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ","))
}

func serializeMap(rv reflect.Value) string {
	keys := rv.MapKeys()
	keyStrings := make([]string, len(keys))
	for i, k := range keys {
		keyStrings[i] = serializeValue(k.Interface())
	}
	sort.Strings(keyStrings)

	pairs := make([]string, len(keyStrings))
	for i, ks := range keyStrings {
		for _, k := range keys {
			if serializeValue(k.Interface()) == ks {
				pairs[i] = fmt.Sprintf("%s=%s", ks, serializeValue(rv.MapIndex(k).Interface()))
				break
			}
		}
	}
	return fmt.Sprintf("{%s}", strings.Join(pairs, ","))
}

func serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanInterface() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, serializeValue(fv.Interface())))
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ","))
}

func jsonFallback(v any, rv reflect.Value, rt reflect.Type) string {
	data, err := json.Marshal(v)
	if err != nil {
		if rv.CanAddr() {
			return fmt.Sprintf("fallback:%s:%x", rt.String(), rv.UnsafeAddr())
		}
		return fmt.Sprintf("fallback:%s", rt.String())
	}
	return string(data)
}
