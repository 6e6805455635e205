package starlark

import (
	"time"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"go.starlark.net/starlark"
	starlarktime "go.starlark.net/lib/time"
)

// ConvertToStarlark converts a template Value to a Starlark value. Lists and
// dicts are copied, so expressions cannot modify the caller's context.
func ConvertToStarlark(val mdtemplate.Value) starlark.Value {
	if val == nil {
		return starlark.None
	}

	switch v := val.(type) {
	case mdtemplate.StringValue:
		return starlark.String(string(v))
	case mdtemplate.IntValue:
		return starlark.MakeInt64(int64(v))
	case mdtemplate.FloatValue:
		return starlark.Float(float64(v))
	case mdtemplate.BoolValue:
		return starlark.Bool(bool(v))
	case mdtemplate.TimeValue:
		return starlarktime.Time(time.Time(v))
	case mdtemplate.ListValue:
		items := make([]starlark.Value, len(v))
		for i, item := range v {
			items[i] = ConvertToStarlark(item)
		}
		return starlark.NewList(items)
	case mdtemplate.DictValue:
		dict := starlark.NewDict(len(v))
		for _, key := range v.Keys() {
			_ = dict.SetKey(starlark.String(key), ConvertToStarlark(v[key]))
		}
		return dict
	case mdtemplate.NoneValue:
		return starlark.None
	default:
		// For unknown types, convert to string
		return starlark.String(val.String())
	}
}

// ConvertFromStarlark converts a Starlark value to a template Value. Tuples,
// sets and other iterables become lists.
func ConvertFromStarlark(val starlark.Value) mdtemplate.Value {
	if val == nil || val == starlark.None {
		return mdtemplate.NoneValue{}
	}

	switch v := val.(type) {
	case starlark.String:
		return mdtemplate.StringValue(string(v))
	case starlark.Bytes:
		return mdtemplate.StringValue(string(v))
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return mdtemplate.IntValue(i)
		}
		// For very large integers, convert to string
		return mdtemplate.StringValue(v.String())
	case starlark.Float:
		return mdtemplate.FloatValue(float64(v))
	case starlark.Bool:
		return mdtemplate.BoolValue(bool(v))
	case starlarktime.Time:
		return mdtemplate.TimeValue(time.Time(v))
	case *starlark.Dict:
		dict := make(mdtemplate.DictValue, v.Len())
		for _, item := range v.Items() {
			if keyStr, ok := item[0].(starlark.String); ok {
				dict[string(keyStr)] = ConvertFromStarlark(item[1])
			} else {
				dict[item[0].String()] = ConvertFromStarlark(item[1])
			}
		}
		return dict
	case starlark.Indexable:
		items := make(mdtemplate.ListValue, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = ConvertFromStarlark(v.Index(i))
		}
		return items
	case starlark.Iterable:
		var items mdtemplate.ListValue
		iter := v.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			items = append(items, ConvertFromStarlark(x))
		}
		return items
	default:
		// For unknown types, convert to string
		return mdtemplate.StringValue(val.String())
	}
}

// WrapContext converts a template context into Starlark globals.
func WrapContext(ctx mdtemplate.Context) starlark.StringDict {
	wrapped := make(starlark.StringDict, len(ctx))
	for key, value := range ctx {
		wrapped[key] = ConvertToStarlark(value)
	}
	return wrapped
}
