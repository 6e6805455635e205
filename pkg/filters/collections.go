package filters

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
)

// get indexes a dict by key or a list by position.
func get(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("get", args, 1, 1); err != nil {
		return nil, err
	}
	return mdtemplate.Index(val, args[0].String())
}

// getMul collects key from every element of a list that has it.
func getMul(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("get_mul", args, 1, 1); err != nil {
		return nil, err
	}
	vals, err := items("get_mul", val)
	if err != nil {
		return nil, err
	}
	key := args[0].String()
	out := mdtemplate.ListValue{}
	for _, v := range vals {
		if e, err := mdtemplate.Index(v, key); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// escapes maps escape sequences written in filter arguments to the
// characters they stand for.
var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t")

// join concatenates the elements with a delimiter. When the optional second
// argument is true, escape sequences such as \n in the delimiter are
// expanded.
func join(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("join", args, 0, 2); err != nil {
		return nil, err
	}
	vals, err := items("join", val)
	if err != nil {
		return nil, err
	}
	delim := stringArg(args, 0, "")
	if len(args) > 1 && args[1].Truth() {
		delim = escapes.Replace(delim)
	}
	return str(joinItems(vals, func(_ int, s string) string { return s }, delim)), nil
}

func length(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("length", args, 0, 0); err != nil {
		return nil, err
	}
	switch v := val.(type) {
	case mdtemplate.StringValue:
		return mdtemplate.IntValue(utf8.RuneCountInString(string(v))), nil
	case mdtemplate.ListValue:
		return mdtemplate.IntValue(len(v)), nil
	case mdtemplate.DictValue:
		return mdtemplate.IntValue(len(v)), nil
	case mdtemplate.NoneValue:
		return mdtemplate.IntValue(0), nil
	}
	return nil, fmt.Errorf("length of %s", mdtemplate.TypeName(val))
}

// defaultValue replaces falsy values (none, empty, zero) with its argument.
func defaultValue(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("default", args, 1, 1); err != nil {
		return nil, err
	}
	if val.Truth() {
		return val, nil
	}
	return args[0], nil
}
