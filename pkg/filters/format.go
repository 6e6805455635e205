package filters

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"golang.org/x/text/message"
)

// formatSpec is a parsed Python format specification:
//
//	[[fill]align][sign][#][0][width][,][.precision][type]
type formatSpec struct {
	fill  rune
	align byte // one of <>^= or 0
	sign  byte // one of +- space or 0
	alt   bool
	zero  bool
	width int
	group bool
	prec  int // -1 when absent
	verb  byte
}

const formatVerbs = "sdxXobfFeEgG%"

func parseFormatSpec(spec string) (formatSpec, error) {
	fs := formatSpec{fill: ' ', prec: -1}
	r := []rune(spec)
	i := 0
	isAlign := func(c rune) bool { return c == '<' || c == '>' || c == '^' || c == '=' }
	switch {
	case len(r) >= 2 && isAlign(r[1]):
		fs.fill, fs.align = r[0], byte(r[1])
		i = 2
	case len(r) >= 1 && isAlign(r[0]):
		fs.align = byte(r[0])
		i = 1
	}
	if i < len(r) && (r[i] == '+' || r[i] == '-' || r[i] == ' ') {
		fs.sign = byte(r[i])
		i++
	}
	if i < len(r) && r[i] == '#' {
		fs.alt = true
		i++
	}
	if i < len(r) && r[i] == '0' {
		fs.zero = true
		i++
	}
	start := i
	for i < len(r) && r[i] >= '0' && r[i] <= '9' {
		i++
	}
	if i > start {
		fs.width, _ = strconv.Atoi(string(r[start:i]))
	}
	if i < len(r) && r[i] == ',' {
		fs.group = true
		i++
	}
	if i < len(r) && r[i] == '.' {
		i++
		start = i
		for i < len(r) && r[i] >= '0' && r[i] <= '9' {
			i++
		}
		if i == start {
			return fs, fmt.Errorf("format spec %q: missing precision", spec)
		}
		fs.prec, _ = strconv.Atoi(string(r[start:i]))
	}
	if i < len(r) && r[i] < utf8.RuneSelf && strings.IndexByte(formatVerbs, byte(r[i])) >= 0 {
		fs.verb = byte(r[i])
		i++
	}
	if i != len(r) {
		return fs, fmt.Errorf("invalid format spec %q", spec)
	}
	return fs, nil
}

func (fs formatSpec) format(v mdtemplate.Value, p *message.Printer) (string, error) {
	verb := fs.verb
	if verb == 0 {
		switch v.(type) {
		case mdtemplate.IntValue:
			verb = 'd'
		case mdtemplate.FloatValue:
			if fs.prec >= 0 || fs.group {
				verb = 'g'
			}
		}
	}

	numeric := true
	neg := false
	var body string
	switch verb {
	case 'd', 'x', 'X', 'o', 'b':
		n, err := mdtemplate.AsInt(v)
		if err != nil {
			return "", err
		}
		neg = n < 0
		u := uint64(n)
		if neg {
			u = uint64(-n)
		}
		switch verb {
		case 'd':
			if fs.group {
				body = p.Sprintf("%d", u)
			} else {
				body = strconv.FormatUint(u, 10)
			}
		case 'x':
			body = strconv.FormatUint(u, 16)
		case 'X':
			body = strings.ToUpper(strconv.FormatUint(u, 16))
		case 'o':
			body = strconv.FormatUint(u, 8)
		case 'b':
			body = strconv.FormatUint(u, 2)
		}
		if fs.alt && verb != 'd' {
			body = "0" + strings.ToLower(string(verb)) + body
		}
	case 'f', 'F', 'e', 'E', 'g', 'G', '%':
		f, err := mdtemplate.AsFloat(v)
		if err != nil {
			return "", err
		}
		if verb == '%' {
			f *= 100
		}
		neg = math.Signbit(f) && !math.IsNaN(f)
		f = math.Abs(f)
		prec := fs.prec
		if prec < 0 {
			prec = 6
		}
		goVerb := verb
		switch verb {
		case 'F', '%':
			goVerb = 'f'
		}
		if fs.group && goVerb == 'f' {
			body = p.Sprintf(fmt.Sprintf("%%.%df", prec), f)
		} else {
			body = strconv.FormatFloat(f, goVerb, prec, 64)
		}
		if verb == '%' {
			body += "%"
		}
	default:
		numeric = false
		body = v.String()
		if _, isNum := v.(mdtemplate.FloatValue); isNum {
			numeric = true
			if strings.HasPrefix(body, "-") {
				neg = true
				body = body[1:]
			}
		}
		if !numeric && fs.prec >= 0 && utf8.RuneCountInString(body) > fs.prec {
			body = string([]rune(body)[:fs.prec])
		}
	}

	sign := ""
	switch {
	case neg:
		sign = "-"
	case numeric && fs.sign == '+':
		sign = "+"
	case numeric && fs.sign == ' ':
		sign = " "
	}
	return fs.pad(sign, body, numeric), nil
}

func (fs formatSpec) pad(sign, body string, numeric bool) string {
	fill, align := fs.fill, fs.align
	if align == 0 {
		switch {
		case numeric && fs.zero:
			fill, align = '0', '='
		case numeric:
			align = '>'
		default:
			align = '<'
		}
	}
	n := fs.width - utf8.RuneCountInString(sign) - utf8.RuneCountInString(body)
	if n <= 0 {
		return sign + body
	}
	padding := func(k int) string { return strings.Repeat(string(fill), k) }
	switch align {
	case '<':
		return sign + body + padding(n)
	case '^':
		return padding(n/2) + sign + body + padding(n-n/2)
	case '=':
		return sign + padding(n) + body
	default:
		return padding(n) + sign + body
	}
}
