package filters

import (
	"strings"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"golang.org/x/text/cases"
)

func upper(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("upper", args, 0, 0); err != nil {
		return nil, err
	}
	return str(strings.ToUpper(val.String())), nil
}

func lower(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("lower", args, 0, 0); err != nil {
		return nil, err
	}
	return str(strings.ToLower(val.String())), nil
}

// title capitalizes every word using the casing rules of the locale.
func (c *catalog) title(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("title", args, 0, 0); err != nil {
		return nil, err
	}
	// a Caser keeps state and cannot be shared between renders
	return str(cases.Title(c.tag).String(val.String())), nil
}

// trim strips surrounding whitespace, or the given characters.
func trim(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("trim", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return str(strings.TrimSpace(val.String())), nil
	}
	return str(strings.Trim(val.String(), args[0].String())), nil
}
