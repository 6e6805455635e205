package mdtemplate_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
)

const roundTripTemplate = `# {{ title|upper }}
{% for name, level in spells %}
- {{ name }} ({{ level|add:1 }})
{% else %}
No spells.
{% endfor %}
{% if mode == "a" %}A{% elif mode == "b" %}B{% else %}{% with m=mode|upper %}{{ m }}{% endwith %}{% endif %}
{{ broken|nope }} {{ unterminated`

func TestEncodeRoundTrip(t *testing.T) {
	env := newEnv(t)
	orig, err := env.Parse(roundTripTemplate)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	blob, err := orig.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := env.Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(orig.Root, decoded.Root, cmpopts.IgnoreUnexported(mdtemplate.Node{})); diff != "" {
		t.Errorf("decoded tree differs (-orig +decoded):\n%s", diff)
	}

	contexts := []mdtemplate.Context{
		{
			"title": mdtemplate.StringValue("Spells"),
			"mode":  mdtemplate.StringValue("a"),
			"spells": mdtemplate.ListValue{
				mdtemplate.ListValue{mdtemplate.StringValue("Light"), mdtemplate.IntValue(0)},
				mdtemplate.ListValue{mdtemplate.StringValue("Shield"), mdtemplate.IntValue(1)},
			},
		},
		{
			"title":  mdtemplate.StringValue("None"),
			"mode":   mdtemplate.StringValue("z"),
			"spells": mdtemplate.ListValue{},
		},
		{
			"title": mdtemplate.StringValue("Missing spells"),
			"mode":  mdtemplate.StringValue("b"),
		},
	}
	for i, data := range contexts {
		want, wantErr := orig.Render(data)
		got, gotErr := decoded.Render(data)
		if (wantErr == nil) != (gotErr == nil) {
			t.Fatalf("context %d: error mismatch: %v vs %v", i, wantErr, gotErr)
		}
		if got != want {
			t.Errorf("context %d: decoded renders %q, original %q", i, got, want)
		}
	}

	again, err := decoded.Encode()
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if diff := cmp.Diff(blob, again); diff != "" {
		t.Errorf("re-encoding changed the blob")
	}
}

func TestDecodeRecompilesAgainstEnvironment(t *testing.T) {
	orig, err := newEnv(t).Parse("{{ name|upper }}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	blob, err := orig.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// an environment without the filter keeps the interpolation as text
	bare := mdtemplate.NewEnvironment(nil, nil)
	decoded, err := bare.Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := decoded.Render(mdtemplate.Context{"name": mdtemplate.StringValue("ada")})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "{{ name|upper }}" {
		t.Errorf("got %q", got)
	}
	if decoded.Environment() != bare {
		t.Error("decoded template not bound to the decoding environment")
	}
}

func TestDecodeInvalid(t *testing.T) {
	env := newEnv(t)
	valid, err := env.Parse("{% if a %}x{% endif %}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	blob, err := valid.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	inputs := map[string][]byte{
		"empty":       nil,
		"wrong magic": []byte("PK\x03\x04whatever"),
		"garbage":     append([]byte("MDT\x01"), "not zstd"...),
		"truncated":   blob[:len(blob)/2],
	}
	for name, in := range inputs {
		if _, err := env.Decode(in); !errors.Is(err, mdtemplate.ErrInvalidBlob) {
			t.Errorf("%s: want ErrInvalidBlob, got %v", name, err)
		}
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	env := newEnv(t)
	deep, err := env.Parse("{% if a %}{% if b %}{% if c %}x{% endif %}{% endif %}{% endif %}")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	blob, err := deep.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	shallow := newEnv(t)
	shallow.MaxDepth = 2
	_, err = shallow.Decode(blob)
	var le *mdtemplate.LimitError
	if !errors.As(err, &le) {
		t.Errorf("want *LimitError, got %v", err)
	}
}
