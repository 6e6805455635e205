package starlark

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"go.starlark.net/starlark"
)

func TestConvertToStarlark(t *testing.T) {
	tests := []struct {
		name     string
		input    mdtemplate.Value
		expected starlark.Value
	}{
		{
			name:     "string value",
			input:    mdtemplate.StringValue("hello"),
			expected: starlark.String("hello"),
		},
		{
			name:     "int value",
			input:    mdtemplate.IntValue(42),
			expected: starlark.MakeInt64(42),
		},
		{
			name:     "float value",
			input:    mdtemplate.FloatValue(3.14),
			expected: starlark.Float(3.14),
		},
		{
			name:     "bool value true",
			input:    mdtemplate.BoolValue(true),
			expected: starlark.Bool(true),
		},
		{
			name:     "none value",
			input:    mdtemplate.NoneValue{},
			expected: starlark.None,
		},
		{
			name:     "nil value",
			input:    nil,
			expected: starlark.None,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToStarlark(tt.input)
			if result.String() != tt.expected.String() {
				t.Errorf("ConvertToStarlark() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestConvertFromStarlark(t *testing.T) {
	tests := []struct {
		name     string
		input    starlark.Value
		expected string
	}{
		{"string value", starlark.String("hello"), "hello"},
		{"int value", starlark.MakeInt64(42), "42"},
		{"float value", starlark.Float(3.14), "3.14"},
		{"bool value", starlark.Bool(false), "false"},
		{"none value", starlark.None, ""},
		{"tuple value", starlark.Tuple{starlark.MakeInt(1), starlark.String("a")}, `[1, "a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertFromStarlark(tt.input)
			if result.String() != tt.expected {
				t.Errorf("ConvertFromStarlark() = %v, want %v", result.String(), tt.expected)
			}
		})
	}
}

func TestDictConversionRoundTrip(t *testing.T) {
	in := mdtemplate.DictValue{
		"key1": mdtemplate.StringValue("value1"),
		"key2": mdtemplate.ListValue{mdtemplate.IntValue(1), mdtemplate.IntValue(2)},
	}

	dict, ok := ConvertToStarlark(in).(*starlark.Dict)
	if !ok {
		t.Fatalf("expected *starlark.Dict")
	}
	if dict.Len() != 2 {
		t.Errorf("expected dict length 2, got %d", dict.Len())
	}

	out, ok := ConvertFromStarlark(dict).(mdtemplate.DictValue)
	if !ok {
		t.Fatalf("expected mdtemplate.DictValue")
	}
	if out["key1"].String() != "value1" {
		t.Errorf("expected key1='value1', got %v", out["key1"])
	}
	if out["key2"].String() != "[1, 2]" {
		t.Errorf("expected key2=[1, 2], got %v", out["key2"])
	}
}

func TestEval(t *testing.T) {
	data := mdtemplate.Context{
		"a":      mdtemplate.BoolValue(false),
		"n":      mdtemplate.IntValue(3),
		"items":  mdtemplate.ListValue{mdtemplate.IntValue(1), mdtemplate.IntValue(2), mdtemplate.IntValue(3)},
		"spells": mdtemplate.DictValue{"slotted": mdtemplate.IntValue(2)},
		"name":   mdtemplate.StringValue("Ada"),
	}
	tests := []struct {
		expr string
		want string
	}{
		{"2 + 3", "5"},
		{"n * 2 > 5", "true"},
		{"not a and n == 3", "true"},
		{`"slotted" in spells`, "true"},
		{"4 in items", "false"},
		{"[x * x for x in items if x > 1]", "[4, 9]"},
		{"list(zip(items, items))[0]", "[1, 1]"},
		{"range(3)", "[0, 1, 2]"},
		{"name.upper()", "ADA"},
		{`defined("name") and not defined("missing")`, "true"},
		{`lookup("spells.slotted")`, "2"},
		{`lookup("spells.none", "x")`, "x"},
		{"math.sqrt(16)", "4.0"},
	}
	e := NewEvaluator(Options{})
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Eval(context.Background(), tt.expr, data)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.expr, err)
			}
			if got.String() != tt.want {
				t.Errorf("Eval(%q) = %q, want %q", tt.expr, got.String(), tt.want)
			}
		})
	}
}

func TestEvalDoesNotMutateContext(t *testing.T) {
	items := mdtemplate.ListValue{mdtemplate.IntValue(1)}
	data := mdtemplate.Context{"items": items}
	e := NewEvaluator(Options{})
	if _, err := e.Eval(context.Background(), "items.append(2)", data); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(data["items"].(mdtemplate.ListValue)) != 1 {
		t.Errorf("context list was modified: %v", data["items"])
	}
}

func TestEvalErrors(t *testing.T) {
	e := NewEvaluator(Options{})
	for _, expr := range []string{"missing + 1", "1 +", `fail_if(True, "boom")`} {
		if _, err := e.Eval(context.Background(), expr, nil); err == nil {
			t.Errorf("Eval(%q): expected error", expr)
		}
	}
}

func TestEvalStepBudget(t *testing.T) {
	e := NewEvaluator(Options{MaxSteps: 1000})
	_, err := e.Eval(context.Background(), "[x for x in range(1000000)]", nil)
	if err == nil {
		t.Fatal("expected step budget error")
	}
	if !strings.Contains(err.Error(), "too many steps") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEvalCancelled(t *testing.T) {
	e := NewEvaluator(Options{MaxSteps: 1 << 40, Timeout: -1})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Eval(ctx, "[x for x in range(1 << 30)]", nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("unexpected error: %v", err)
	}
}
