package data

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"github.com/neurodesk/mdtemplate/pkg/netcache"
)

var spells = mdtemplate.Context{
	"title": mdtemplate.StringValue("Spells"),
	"spells": mdtemplate.ListValue{
		mdtemplate.DictValue{"name": mdtemplate.StringValue("Light"), "level": mdtemplate.IntValue(0)},
		mdtemplate.DictValue{"name": mdtemplate.StringValue("Shield"), "level": mdtemplate.IntValue(1)},
	},
}

func writeFile(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadFiles(t *testing.T) {
	cborBody, err := cbor.Marshal(map[string]any{
		"title": "Spells",
		"spells": []any{
			map[string]any{"name": "Light", "level": 0},
			map[string]any{"name": "Shield", "level": 1},
		},
	})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	sources := map[string]string{
		"yaml": writeFile(t, "spells.yaml", []byte("title: Spells\nspells:\n  - {name: Light, level: 0}\n  - {name: Shield, level: 1}\n")),
		"json": writeFile(t, "spells.json", []byte(`{"title": "Spells", "spells": [{"name": "Light", "level": 0}, {"name": "Shield", "level": 1}]}`)),
		"cbor": writeFile(t, "spells.cbor", cborBody),
	}
	var l Loader
	for format, src := range sources {
		t.Run(format, func(t *testing.T) {
			got, err := l.Load(context.Background(), src)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(spells, got); diff != "" {
				t.Errorf("context mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadStdin(t *testing.T) {
	l := Loader{Stdin: strings.NewReader("a: 1\n")}
	got, err := l.Load(context.Background(), Stdin)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(mdtemplate.Context{"a": mdtemplate.IntValue(1)}, got); diff != "" {
		t.Errorf("context mismatch (-want +got):\n%s", diff)
	}

	l.Stdin = strings.NewReader("")
	if got, err := l.Load(context.Background(), Stdin); err != nil || len(got) != 0 {
		t.Errorf("empty input: %v, %v", got, err)
	}
}

func TestLoadRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title": "remote"}`))
	}))
	defer srv.Close()

	if _, err := (&Loader{}).Load(context.Background(), srv.URL+"/d.json"); err == nil {
		t.Error("remote source without a cache should fail")
	}
	l := Loader{Cache: netcache.New(t.TempDir())}
	got, err := l.Load(context.Background(), srv.URL+"/d.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["title"] != mdtemplate.StringValue("remote") {
		t.Errorf("title = %v", got["title"])
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"list", "l.yaml", "- a\n- b\n", "top level must be a mapping, got list"},
		{"scalar", "s.json", "42", "top level must be a mapping, got int"},
		{"broken yaml", "b.yaml", "a: [1, 2\n", "decoding yaml"},
		{"broken cbor", "b.cbor", "\xff\xff", "decoding cbor"},
	}
	var l Loader
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(context.Background(), writeFile(t, tt.file, []byte(tt.body)))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
	if _, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "none.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}
}
