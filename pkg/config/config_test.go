package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestResolvePrecedence(t *testing.T) {
	defaults := Defaults()
	file := &FileConfig{
		IODepth:  ptr(128),
		Runtime:  ptr(60),
		Filename: ptr("/mnt/data/testfile"),
	}
	cli := &Overrides{
		IODepth:  ptr(256),
		FileSize: ptr("2G"),
	}

	p, err := Resolve(defaults, file, cli)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// CLI wins over file.
	if p.IODepth != 256 {
		t.Errorf("IODepth = %d, want 256 (CLI override)", p.IODepth)
	}
	// File wins over defaults.
	if p.Runtime != 60 {
		t.Errorf("Runtime = %d, want 60 (file value)", p.Runtime)
	}
	if p.Filename != "/mnt/data/testfile" {
		t.Errorf("Filename = %q, want file value", p.Filename)
	}
	// CLI wins over defaults when the file is silent.
	if p.FileSize != "2G" {
		t.Errorf("FileSize = %q, want 2G", p.FileSize)
	}
	// Untouched fields keep defaults.
	if p.BlockSize != "4k" || p.IOEngine != "libaio" {
		t.Errorf("defaults not preserved: bs=%q engine=%q", p.BlockSize, p.IOEngine)
	}
}

func TestResolveMissingRequired(t *testing.T) {
	file := &FileConfig{IOEngine: ptr("")}
	_, err := Resolve(Defaults(), file, nil)
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Resolve() error = %v, want *ConfigError", err)
	}
	if cerr.Field != "ioengine" {
		t.Errorf("ConfigError.Field = %q, want ioengine", cerr.Field)
	}
}

func TestResolveDirectBufferedConflict(t *testing.T) {
	file := &FileConfig{Buffered: ptr(1)}
	// Defaults have direct=1; setting buffered=1 must not silently pick a winner.
	_, err := Resolve(Defaults(), file, nil)
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Resolve() error = %v, want *ConfigError", err)
	}

	// Flipping direct off makes the same file valid.
	file.Direct = ptr(0)
	if _, err := Resolve(Defaults(), file, nil); err != nil {
		t.Errorf("Resolve() with direct=0 buffered=1: %v", err)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "cfg.json")
	if err := os.WriteFile(jsonPath, []byte(`{"iodepht": 32}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(jsonPath); err == nil {
		t.Error("LoadFile(json with unknown key) = nil error, want failure")
	}

	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte("iodepht: 32\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(yamlPath); err == nil {
		t.Error("LoadFile(yaml with unknown key) = nil error, want failure")
	}
}

func TestLoadFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"iodepth": `), 0644); err != nil {
		t.Fatal(err)
	}
	var cerr *ConfigError
	if _, err := LoadFile(path); !errors.As(err, &cerr) {
		t.Errorf("LoadFile(truncated json) error = %v, want *ConfigError", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, ext := range []string{"json", "yaml"} {
		t.Run(ext, func(t *testing.T) {
			want := Defaults()
			want.IODepth = 32
			want.Runtime = 45
			want.FileSize = "4G"
			want.Patterns = []Pattern{
				{Name: "read_only", RW: "randread", ReadPct: 100},
				{Name: "mixed", RW: "randrw", ReadPct: 30},
			}

			path := filepath.Join(t.TempDir(), "cfg."+ext)
			if err := WriteFile(path, want); err != nil {
				t.Fatalf("WriteFile() error: %v", err)
			}
			file, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error: %v", err)
			}
			got, err := Resolve(Defaults(), file, nil)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestConfigPatternsReplaceDefaults(t *testing.T) {
	file := &FileConfig{
		Patterns: []Pattern{{Name: "only", RW: "randwrite", ReadPct: 0}},
	}
	p, err := Resolve(Defaults(), file, nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(p.Patterns) != 1 || p.Patterns[0].Name != "only" {
		t.Errorf("Patterns = %+v, want the single file pattern", p.Patterns)
	}
}

func TestDefaultPatternOrder(t *testing.T) {
	want := []string{"100read_0write", "50read_50write", "70read_30write", "0read_100write"}
	pats := Defaults().Patterns
	if len(pats) != len(want) {
		t.Fatalf("got %d default patterns, want %d", len(pats), len(want))
	}
	for i, name := range want {
		if pats[i].Name != name {
			t.Errorf("pattern[%d] = %q, want %q", i, pats[i].Name, name)
		}
	}
}

func TestValidatePatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []Pattern
		wantErr  bool
	}{
		{"valid", []Pattern{{Name: "a", RW: "randread", ReadPct: 100}}, false},
		{"empty list", nil, true},
		{"bad rw mode", []Pattern{{Name: "a", RW: "sideways", ReadPct: 50}}, true},
		{"mix out of range", []Pattern{{Name: "a", RW: "randrw", ReadPct: 150}}, true},
		{"duplicate names", []Pattern{
			{Name: "a", RW: "randread", ReadPct: 100},
			{Name: "a", RW: "randwrite", ReadPct: 0},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Defaults()
			p.Patterns = tt.patterns
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
