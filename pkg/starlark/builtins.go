package starlark

import (
	"errors"
	"fmt"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// localData is the thread-local key holding the context being rendered.
const localData = "mdtemplate.data"

// CreateBuiltins creates the functions and modules available to template
// expressions in addition to the Starlark universe.
func CreateBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"math": starlarkmath.Module,
		"json": starlarkjson.Module,
		"time": starlarktime.Module,

		// defined(name) reports whether the context binds name.
		"defined": starlark.NewBuiltin("defined", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
				return nil, err
			}
			data, _ := thread.Local(localData).(mdtemplate.Context)
			_, ok := data[name]
			return starlark.Bool(ok), nil
		}),

		// lookup(path, default=None) resolves a dotted path such as
		// "spell.levels.0" and returns default when any segment is missing.
		"lookup": starlark.NewBuiltin("lookup", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var path string
			var def starlark.Value = starlark.None
			if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "path", &path, "default?", &def); err != nil {
				return nil, err
			}
			data, _ := thread.Local(localData).(mdtemplate.Context)
			v, err := data.Lookup(path)
			if err != nil {
				return def, nil
			}
			return ConvertToStarlark(v), nil
		}),

		// fail_if(cond, msg) aborts the render with msg when cond is true.
		"fail_if": starlark.NewBuiltin("fail_if", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(args) != 2 {
				return starlark.None, fmt.Errorf("fail_if requires exactly 2 arguments: condition, message")
			}
			if args[0].Truth() {
				msg, ok := starlark.AsString(args[1])
				if !ok {
					msg = args[1].String()
				}
				return starlark.None, errors.New(msg)
			}
			return starlark.False, nil
		}),
	}
}
