package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Vault string `yaml:"vault"`
	Port  int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("ZORTEX_TEST_VAULT", "/tmp/notes")
	p := writeFile(t, t.TempDir(), "c.yaml", "vault: ${ZORTEX_TEST_VAULT}\n")

	s := sample{Port: 8080}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Vault != "/tmp/notes" {
		t.Errorf("vault = %q, want /tmp/notes", s.Vault)
	}
	if s.Port != 8080 {
		t.Errorf("port = %d, want preset 8080", s.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.yaml", "port: -1\n")
	s := sample{}
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.yaml", "port: [1,\n")
	s := sample{Port: 1}
	if err := Load(p, &s); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestLoadWithDefaults_UsesFallback(t *testing.T) {
	dir := t.TempDir()
	fallback := writeFile(t, dir, "default.yaml", "vault: fallback\nport: 9000\n")

	s := sample{Port: 1}
	if err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), fallback, &s); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if s.Vault != "fallback" || s.Port != 9000 {
		t.Errorf("got %+v, want fallback values", s)
	}
}

func TestLoadWithDefaults_PrefersPrimary(t *testing.T) {
	dir := t.TempDir()
	primary := writeFile(t, dir, "primary.yaml", "vault: primary\n")
	fallback := writeFile(t, dir, "default.yaml", "vault: fallback\n")

	s := sample{Port: 1}
	if err := LoadWithDefaults(primary, fallback, &s); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if s.Vault != "primary" {
		t.Errorf("vault = %q, want primary", s.Vault)
	}
}

func TestLoadWithDefaults_BuiltinsOnly(t *testing.T) {
	dir := t.TempDir()

	s := sample{Vault: "builtin", Port: 7}
	if err := LoadWithDefaults(filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml"), &s); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if s.Vault != "builtin" || s.Port != 7 {
		t.Errorf("got %+v, want presets untouched", s)
	}

	bad := sample{}
	if err := LoadWithDefaults(filepath.Join(dir, "a.yaml"), "", &bad); err == nil {
		t.Error("expected presets to be validated")
	}
}
