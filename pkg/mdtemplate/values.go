package mdtemplate

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Value is a dynamically typed value flowing through filters and contexts.
// It defines the text form used when interpolating and the truthiness used by
// conditions.
type Value interface {
	String() string
	Truth() bool
}

// NoneValue represents the absence of a value.
type NoneValue struct{}

func (NoneValue) String() string { return "" }
func (NoneValue) Truth() bool    { return false }

// BoolValue wraps a boolean.
type BoolValue bool

func (b BoolValue) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b BoolValue) Truth() bool { return bool(b) }

// IntValue wraps an integer (64-bit).
type IntValue int64

func (i IntValue) String() string { return strconv.FormatInt(int64(i), 10) }
func (i IntValue) Truth() bool    { return int64(i) != 0 }

// FloatValue wraps a float (64-bit). Integral floats keep a trailing ".0" so
// they stay distinguishable from integers in the output.
type FloatValue float64

func (f FloatValue) String() string {
	v := float64(f)
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !math.IsInf(v, 0) && !math.IsNaN(v) && !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
func (f FloatValue) Truth() bool { return float64(f) != 0 }

// StringValue wraps a string.
type StringValue string

func (s StringValue) String() string { return string(s) }
func (s StringValue) Truth() bool    { return len(string(s)) > 0 }

// TimeValue wraps a point in time. Date filters produce and consume it.
type TimeValue time.Time

func (t TimeValue) String() string { return time.Time(t).Format(time.RFC3339) }
func (t TimeValue) Truth() bool    { return !time.Time(t).IsZero() }

// ListValue wraps a list of values.
type ListValue []Value

func (l ListValue) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(repr(v))
	}
	b.WriteByte(']')
	return b.String()
}
func (l ListValue) Truth() bool { return len(l) > 0 }

// DictValue wraps a string-keyed dictionary of values.
type DictValue map[string]Value

func (d DictValue) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(k))
		b.WriteString(": ")
		b.WriteString(repr(d[k]))
	}
	b.WriteByte('}')
	return b.String()
}
func (d DictValue) Truth() bool { return len(d) > 0 }

// Keys returns the dictionary keys in sorted order.
func (d DictValue) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// repr is the text form of a value nested inside a container.
func repr(v Value) string {
	switch t := v.(type) {
	case nil, NoneValue:
		return "None"
	case StringValue:
		return strconv.Quote(string(t))
	default:
		return v.String()
	}
}

// Context is the mapping from variable name to value a template is rendered
// against. A Context handed to a render is never modified; block scopes get
// their own copy through Overlay.
type Context map[string]Value

// Overlay returns a new context holding every binding of c plus the given
// names bound positionally to values. New bindings shadow existing ones.
func (c Context) Overlay(names []string, values []Value) Context {
	out := make(Context, len(c)+len(names))
	for k, v := range c {
		out[k] = v
	}
	for i, name := range names {
		if i < len(values) {
			out[name] = values[i]
		} else {
			out[name] = NoneValue{}
		}
	}
	return out
}

// Lookup resolves a dotted path such as "spell.level" or "items.0" against
// the context. A key holding the whole path wins over the dotted reading.
// Dict segments are looked up by key and list segments by integer index.
// Nil entries read as None.
func (c Context) Lookup(path string) (Value, error) {
	if v, ok := c[path]; ok {
		return orNone(v), nil
	}
	head, rest, nested := strings.Cut(path, ".")
	v, ok := c[head]
	if !ok || !nested {
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, head)
	}
	v = orNone(v)
	for _, seg := range strings.Split(rest, ".") {
		next, err := Index(v, seg)
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", path, err)
		}
		v = next
	}
	return v, nil
}

// Index returns the element of a dict (by key) or list (by integer index,
// negative indexes count from the end) named by key.
func Index(v Value, key string) (Value, error) {
	switch t := v.(type) {
	case DictValue:
		if e, ok := t[key]; ok {
			return orNone(e), nil
		}
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, key)
	case ListValue:
		i, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("list index must be an integer, got %q", key)
		}
		if i < 0 {
			i += len(t)
		}
		if i < 0 || i >= len(t) {
			return nil, fmt.Errorf("list index %s out of range (len %d)", key, len(t))
		}
		return orNone(t[i]), nil
	default:
		return nil, fmt.Errorf("cannot index %s with %q", TypeName(v), key)
	}
}

func orNone(v Value) Value {
	if v == nil {
		return NoneValue{}
	}
	return v
}

// NewContextFromAny converts a map[string]any into a Value-based Context.
// It recursively converts nested maps/slices into DictValue/ListValue.
func NewContextFromAny(m map[string]any) Context {
	ctx := make(Context, len(m))
	for k, v := range m {
		ctx[k] = FromGo(v)
	}
	return ctx
}

// FromGo converts a Go value to a Value.
func FromGo(v any) Value {
	if v == nil {
		return NoneValue{}
	}
	switch t := v.(type) {
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int8:
		return IntValue(int64(t))
	case int16:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case uint:
		return IntValue(int64(t))
	case uint8:
		return IntValue(int64(t))
	case uint16:
		return IntValue(int64(t))
	case uint32:
		return IntValue(int64(t))
	case uint64:
		return IntValue(int64(t))
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case []byte:
		return StringValue(string(t))
	case time.Time:
		return TimeValue(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make(ListValue, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, FromGo(rv.Index(i).Interface()))
		}
		return out
	case reflect.Map:
		out := make(DictValue, rv.Len())
		it := rv.MapRange()
		for it.Next() {
			out[fmt.Sprint(it.Key().Interface())] = FromGo(it.Value().Interface())
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NoneValue{}
		}
		return FromGo(rv.Elem().Interface())
	}
	// Fallback: string formatting
	return StringValue(fmt.Sprintf("%v", v))
}

// ToGo converts a Value back into plain Go values (string, int64, float64,
// bool, []any, map[string]any, time.Time or nil).
func ToGo(v Value) any {
	switch t := v.(type) {
	case nil, NoneValue:
		return nil
	case StringValue:
		return string(t)
	case IntValue:
		return int64(t)
	case FloatValue:
		return float64(t)
	case BoolValue:
		return bool(t)
	case TimeValue:
		return time.Time(t)
	case ListValue:
		out := make([]any, 0, len(t))
		for _, it := range t {
			out = append(out, ToGo(it))
		}
		return out
	case DictValue:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = ToGo(vv)
		}
		return out
	default:
		return v.String()
	}
}

// Iterate converts a Value into a []Value for iteration semantics. Strings
// iterate over their characters and dicts over their sorted keys.
func Iterate(v Value) ([]Value, error) {
	switch t := v.(type) {
	case nil, NoneValue:
		return nil, nil
	case StringValue:
		s := string(t)
		out := make([]Value, 0, utf8.RuneCountInString(s))
		for len(s) > 0 {
			r, size := utf8.DecodeRuneInString(s)
			s = s[size:]
			out = append(out, StringValue(string(r)))
		}
		return out, nil
	case ListValue:
		// Copy to avoid mutating underlying array
		out := make([]Value, len(t))
		copy(out, t)
		return out, nil
	case DictValue:
		keys := t.Keys()
		out := make([]Value, 0, len(keys))
		for _, k := range keys {
			out = append(out, StringValue(k))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is not iterable", TypeName(v))
}

// AsInt converts numeric-looking values to an int64.
func AsInt(v Value) (int64, error) {
	switch t := v.(type) {
	case IntValue:
		return int64(t), nil
	case FloatValue:
		return int64(t), nil
	case BoolValue:
		if t {
			return 1, nil
		}
		return 0, nil
	case StringValue:
		i, err := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
			if ferr != nil {
				return 0, fmt.Errorf("cannot convert %q to int", string(t))
			}
			return int64(f), nil
		}
		return i, nil
	}
	return 0, fmt.Errorf("cannot convert %s to int", TypeName(v))
}

// AsFloat converts numeric-looking values to a float64.
func AsFloat(v Value) (float64, error) {
	switch t := v.(type) {
	case IntValue:
		return float64(t), nil
	case FloatValue:
		return float64(t), nil
	case BoolValue:
		if t {
			return 1, nil
		}
		return 0, nil
	case StringValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", string(t))
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %s to float", TypeName(v))
}

// TypeName returns a short name for the dynamic type of v, for messages.
func TypeName(v Value) string {
	switch v.(type) {
	case nil, NoneValue:
		return "none"
	case BoolValue:
		return "bool"
	case IntValue:
		return "int"
	case FloatValue:
		return "float"
	case StringValue:
		return "string"
	case TimeValue:
		return "time"
	case ListValue:
		return "list"
	case DictValue:
		return "dict"
	}
	return fmt.Sprintf("%T", v)
}
