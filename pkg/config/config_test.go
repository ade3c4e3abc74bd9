package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "laguz")
	path := writeYAML(t, "name: ${SAMPLE_NAME}\ncount: 2\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "laguz" || s.Count != 2 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeYAML(t, "count: -1\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Count: 1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Name != "default" || s.Count != 1 {
		t.Errorf("defaults changed: %+v", s)
	}

	bad := sample{Count: -5}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &bad); err == nil {
		t.Fatal("defaults must still be validated")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("expected error for missing file")
	}
}
