package filters

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andreyvit/diff"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func renderHelper(t *testing.T, tpl string, data map[string]any) (string, error) {
	t.Helper()
	reg, err := NewRegistry(Options{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	env := mdtemplate.NewEnvironment(reg, nil)
	parsed, err := env.Parse(tpl)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return parsed.Render(mdtemplate.NewContextFromAny(data))
}

func TestFilters(t *testing.T) {
	spells := []any{
		map[string]any{"name": "Light", "level": 0},
		map[string]any{"name": "Shield", "level": 1},
		map[string]any{"title": "no name"},
	}
	tests := []struct {
		tpl  string
		data map[string]any
		want string
	}{
		{`{{ x|as_name:"https://example.com" }}`, map[string]any{"x": "Docs"}, "[Docs](https://example.com)"},
		{`{{ x|as_target:"Home" }}`, map[string]any{"x": "/"}, "[Home](/)"},
		{"{{ l|ul }}", map[string]any{"l": []string{"a", "b"}}, "* a\n* b"},
		{"{{ l|ol }}", map[string]any{"l": []string{"a", "b"}}, "1. a\n2. b"},
		{"{{ l|ul }}", map[string]any{"l": []string{}}, ""},
		{"{{ x|bold }} {{ x|italic }} {{ x|strikethrough }}", map[string]any{"x": "y"}, "__y__ *y* ~~y~~"},
		{"{{ x|heading }}", map[string]any{"x": "Title"}, "# Title"},
		{"{{ x|heading:3 }}", map[string]any{"x": "Title"}, "### Title"},
		{"{{ x|code }}", map[string]any{"x": "go test"}, "`go test`"},
		{"{{ x|code:'sh' }}", map[string]any{"x": "ls\n"}, "```sh\nls\n```"},
		{"{{ x|quote }}", map[string]any{"x": "a\n\nb\n"}, "> a\n>\n> b"},
		{"{{ t|render_bool }}{{ f|render_bool }}", map[string]any{"t": true, "f": 0}, "✔✗"},
		{"{{ t|render_bool:'yes','no' }}", map[string]any{"t": false}, "no"},
		{"{{ x|html }}", map[string]any{"x": "**hi** ~~there~~"}, "<p><strong>hi</strong> <del>there</del></p>\n"},
		{"{{ d|get:'a' }}", map[string]any{"d": map[string]any{"a": 1}}, "1"},
		{"{{ l|get:1 }}", map[string]any{"l": []int{5, 6}}, "6"},
		{"{{ l|get_mul:'name' }}", map[string]any{"l": spells}, `["Light", "Shield"]`},
		{"{{ l|get_mul:'name'|join:', ' }}", map[string]any{"l": spells}, "Light, Shield"},
		{`{{ l|join:"\\n", true }}`, map[string]any{"l": []string{"a", "b"}}, "a\nb"},
		{`{{ l|join:"\\n" }}`, map[string]any{"l": []string{"a", "b"}}, `a\nb`},
		{"{{ l|join }}", map[string]any{"l": []int{1, 2}}, "12"},
		{"{{ s|length }} {{ l|length }}", map[string]any{"s": "héllo", "l": []int{1, 2}}, "5 2"},
		{"{{ e|default:'none' }} {{ f|default:'none' }}", map[string]any{"e": "", "f": "x"}, "none x"},
		{"{{ s|upper }} {{ s|lower }}", map[string]any{"s": "MiXed"}, "MIXED mixed"},
		{"{{ s|title }}", map[string]any{"s": "the lord of the rings"}, "The Lord Of The Rings"},
		{"[{{ s|trim }}] [{{ t|trim:'*' }}]", map[string]any{"s": "  x \n", "t": "**y**"}, "[x] [y]"},
		{"{{ n|frmt:'.2f' }}", map[string]any{"n": 3.14159}, "3.14"},
		{"{{ n|frmt:',d' }}", map[string]any{"n": 1234567}, "1,234,567"},
		{"{{ n|adjust:'+' }} {{ n|adjust:'-' }}", map[string]any{"n": 2.1}, "3 2"},
		{"{{ n|adjust:'~',1 }} {{ m|adjust:'~' }}", map[string]any{"n": 2.25, "m": 2.5}, "2.2 2.0"},
		{"{{ n|bytes }}", map[string]any{"n": 82854982}, "83 MB"},
		{"{{ n|comma }}", map[string]any{"n": 1234567}, "1,234,567"},
		{"{{ n|ordinal }} {{ m|ordinal }}", map[string]any{"n": 3, "m": 11}, "3rd 11th"},
		{"{{ d|date:'%Y-%m-%d %H:%M' }}", map[string]any{"d": "2024-03-01 14:05:00"}, "2024-03-01 14:05"},
		{"{{ d|date:'%d/%m/%Y' }}", map[string]any{"d": "March 1, 2024"}, "01/03/2024"},
		{"{{ d|date:'%Y' }}", map[string]any{"d": time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)}, "1999"},
		{"{{ d|date_local }}", map[string]any{"d": "2024-03-01"}, "1 March 2024"},
		{"{{ d|date_local:'2 January 2006','de_DE' }}", map[string]any{"d": "2024-03-01"}, "1 März 2024"},
		{"{{ d|date_local:'January 2006','fr-CA' }}", map[string]any{"d": "2024-07-14"}, "juillet 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.tpl, func(t *testing.T) {
			got, err := renderHelper(t, tt.tpl, tt.data)
			if err != nil {
				t.Fatalf("render error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterErrors(t *testing.T) {
	tests := []struct {
		tpl  string
		data map[string]any
	}{
		{"{{ x|as_name }}", map[string]any{"x": "a"}},
		{"{{ x|bold:1 }}", map[string]any{"x": "a"}},
		{"{{ x|heading:9 }}", map[string]any{"x": "a"}},
		{"{{ x|ul }}", map[string]any{"x": 3}},
		{"{{ d|get:'nope' }}", map[string]any{"d": map[string]any{}}},
		{"{{ l|get:5 }}", map[string]any{"l": []int{1}}},
		{"{{ x|adjust:'?' }}", map[string]any{"x": 1}},
		{"{{ x|adjust:'+' }}", map[string]any{"x": "abc"}},
		{"{{ x|bytes }}", map[string]any{"x": -1}},
		{"{{ x|frmt:'.q' }}", map[string]any{"x": 1}},
		{"{{ x|date }}", map[string]any{"x": "not a date at all"}},
		{"{{ x|date }}", map[string]any{"x": []int{1}}},
		{"{{ x|length }}", map[string]any{"x": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.tpl, func(t *testing.T) {
			_, err := renderHelper(t, tt.tpl, tt.data)
			var re *mdtemplate.RenderError
			if !errors.As(err, &re) {
				t.Errorf("want *RenderError, got %v", err)
			}
		})
	}
}

func TestTabularize(t *testing.T) {
	spells := []any{
		map[string]any{"name": "Magic Missile", "level": 1, "school": "evocation"},
		map[string]any{"name": "Shield", "level": 1},
		map[string]any{"name": "Odd|Name", "level": 2, "school": "line one\nline two"},
	}
	tests := []struct {
		name string
		tpl  string
		data map[string]any
		want string
	}{
		{
			name: "row format with column filters",
			tpl:  `{{ spells|tabularize:"name>bold;level;school" }}`,
			data: map[string]any{"spells": spells},
			want: strings.Join([]string{
				"| name | level | school |",
				"|------|-------|--------|",
				"| __Magic Missile__ | 1 | evocation |",
				"| __Shield__ | 1 | - |",
				`| __Odd\|Name__ | 2 | line one line two |`,
				"",
			}, "\n"),
		},
		{
			name: "dict of dicts keyed by first column",
			tpl:  `{{ spells|tabularize:"name;level>frmt:'03d'" }}`,
			data: map[string]any{"spells": map[string]any{
				"fireball": map[string]any{"level": 3},
				"aid":      map[string]any{"level": 2},
			}},
			want: strings.Join([]string{
				"| name | level |",
				"|------|-------|",
				"| aid | 002 |",
				"| fireball | 003 |",
				"",
			}, "\n"),
		},
		{
			name: "inferred columns",
			tpl:  "{{ rows|tabularize }}",
			data: map[string]any{"rows": []any{
				map[string]any{"b": 1, "a": 2},
				map[string]any{"c": true},
			}},
			want: strings.Join([]string{
				"| a | b | c |",
				"|---|---|---|",
				"| 2 | 1 | - |",
				"| - | - | true |",
				"",
			}, "\n"),
		},
		{
			name: "no rows",
			tpl:  `{{ rows|tabularize:"a;b" }}`,
			data: map[string]any{"rows": []any{}},
			want: "No values",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderHelper(t, tt.tpl, tt.data)
			if err != nil {
				t.Fatalf("render error: %v", err)
			}
			if got != tt.want {
				t.Errorf("table mismatch:\n%v", diff.LineDiff(tt.want, got))
			}
		})
	}

	if _, err := renderHelper(t, `{{ rows|tabularize:"a;b>nope" }}`, map[string]any{"rows": spells}); !errors.Is(err, mdtemplate.ErrUnknownFilter) {
		t.Errorf("unknown column filter: got %v", err)
	}
	if _, err := renderHelper(t, `{{ rows|tabularize }}`, map[string]any{"rows": []int{1}}); err == nil {
		t.Error("non-dict rows should fail")
	}
}

func TestFormatSpec(t *testing.T) {
	tests := []struct {
		spec string
		val  mdtemplate.Value
		want string
	}{
		{"", mdtemplate.IntValue(42), "42"},
		{"", mdtemplate.FloatValue(2), "2.0"},
		{".2f", mdtemplate.FloatValue(3.14159), "3.14"},
		{".0f", mdtemplate.FloatValue(2.5), "2"},
		{">6", mdtemplate.IntValue(42), "    42"},
		{"<5", mdtemplate.StringValue("ab"), "ab   "},
		{"^7", mdtemplate.StringValue("ab"), "  ab   "},
		{"*^9", mdtemplate.StringValue("mid"), "***mid***"},
		{"05d", mdtemplate.IntValue(-42), "-0042"},
		{"+d", mdtemplate.IntValue(5), "+5"},
		{" d", mdtemplate.IntValue(5), " 5"},
		{",d", mdtemplate.IntValue(1234567), "1,234,567"},
		{",.2f", mdtemplate.FloatValue(1234.5), "1,234.50"},
		{"#x", mdtemplate.IntValue(255), "0xff"},
		{"X", mdtemplate.IntValue(255), "FF"},
		{"08b", mdtemplate.IntValue(5), "00000101"},
		{".1%", mdtemplate.FloatValue(0.256), "25.6%"},
		{".2e", mdtemplate.FloatValue(12345), "1.23e+04"},
		{".3", mdtemplate.StringValue("abcdef"), "abc"},
		{"d", mdtemplate.StringValue("12"), "12"},
		{">8.1f", mdtemplate.FloatValue(-3.14), "    -3.1"},
	}
	p := message.NewPrinter(language.English)
	for _, tt := range tests {
		spec, err := parseFormatSpec(tt.spec)
		if err != nil {
			t.Errorf("parseFormatSpec(%q): %v", tt.spec, err)
			continue
		}
		got, err := spec.format(tt.val, p)
		if err != nil {
			t.Errorf("format(%q, %v): %v", tt.spec, tt.val, err)
			continue
		}
		if got != tt.want {
			t.Errorf("format(%q, %v) = %q, want %q", tt.spec, tt.val, got, tt.want)
		}
	}

	for _, bad := range []string{".", "5q", "abc", ".2fx"} {
		if _, err := parseFormatSpec(bad); err == nil {
			t.Errorf("parseFormatSpec(%q) should fail", bad)
		}
	}
}

func TestRegistryOptions(t *testing.T) {
	if _, err := NewRegistry(Options{Locale: "!!"}); err == nil {
		t.Error("invalid locale accepted")
	}

	reg, err := NewRegistry(Options{Locale: "de_DE"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	reg.MustRegister("shout", func(v mdtemplate.Value, _ []mdtemplate.Value) (mdtemplate.Value, error) {
		return mdtemplate.StringValue(v.String() + "!"), nil
	})
	env := mdtemplate.NewEnvironment(reg, nil)
	if err := Register(reg, Options{}); !errors.Is(err, mdtemplate.ErrRegistryFrozen) {
		t.Errorf("registering into a frozen registry: got %v", err)
	}

	parsed, err := env.Parse("{{ n|frmt:',d' }} {{ d|date_local:'January' }} {{ s|shout }}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	got, err := parsed.Render(mdtemplate.Context{
		"n": mdtemplate.IntValue(1234567),
		"d": mdtemplate.StringValue("2024-03-01"),
		"s": mdtemplate.StringValue("hi"),
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if want := "1.234.567 März hi!"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
