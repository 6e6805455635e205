package filters

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"golang.org/x/text/message"
)

// frmt formats a value with a Python style format spec such as ".2f",
// ">8" or ",d". Digit grouping follows the configured locale.
func (c *catalog) frmt(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("frmt", args, 1, 1); err != nil {
		return nil, err
	}
	spec, err := parseFormatSpec(args[0].String())
	if err != nil {
		return nil, err
	}
	out, err := spec.format(val, message.NewPrinter(c.tag))
	if err != nil {
		return nil, err
	}
	return str(out), nil
}

// adjust rounds a number: "+" rounds up, "-" rounds down and "~" rounds
// half to even at the given precision (default 0).
func adjust(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("adjust", args, 1, 2); err != nil {
		return nil, err
	}
	f, err := mdtemplate.AsFloat(val)
	if err != nil {
		return nil, err
	}
	switch mode := args[0].String(); mode {
	case "+":
		return mdtemplate.IntValue(math.Ceil(f)), nil
	case "-":
		return mdtemplate.IntValue(math.Floor(f)), nil
	case "~":
		prec, err := intArg(args, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("adjust precision: %w", err)
		}
		scale := math.Pow(10, float64(prec))
		return mdtemplate.FloatValue(math.RoundToEven(f*scale) / scale), nil
	default:
		return nil, fmt.Errorf("unknown adjustment %q", mode)
	}
}

// humanBytes renders a byte count in SI units, e.g. 83 MB.
func humanBytes(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("bytes", args, 0, 0); err != nil {
		return nil, err
	}
	n, err := mdtemplate.AsInt(val)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative byte count %d", n)
	}
	return str(humanize.Bytes(uint64(n))), nil
}

// comma groups thousands with commas.
func comma(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("comma", args, 0, 0); err != nil {
		return nil, err
	}
	if f, ok := val.(mdtemplate.FloatValue); ok {
		return str(humanize.Commaf(float64(f))), nil
	}
	n, err := mdtemplate.AsInt(val)
	if err != nil {
		return nil, err
	}
	return str(humanize.Comma(n)), nil
}

func ordinal(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("ordinal", args, 0, 0); err != nil {
		return nil, err
	}
	n, err := mdtemplate.AsInt(val)
	if err != nil {
		return nil, err
	}
	return str(humanize.Ordinal(int(n))), nil
}
