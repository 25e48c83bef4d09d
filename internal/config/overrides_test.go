package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeOverrides(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadStoreOverrides(t *testing.T) {
	path := writeOverrides(t, `
dev:
  mystore:
    template_url: "http://localhost:3000/templates"
staging:
  mystore:
    default_url: "https://staging.example.com"
`)
	o, err := LoadStoreOverrides(path, "dev")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, ok := o.Lookup("mystore", "template_url"); !ok || v != "http://localhost:3000/templates" {
		t.Fatalf("unexpected lookup result: %q %v", v, ok)
	}
	// Atributo de otro entorno no debe filtrarse.
	if _, ok := o.Lookup("mystore", "default_url"); ok {
		t.Fatal("staging override leaked into dev")
	}
	if _, ok := o.Lookup("otherstore", "template_url"); ok {
		t.Fatal("unknown store should have no overrides")
	}
}

func TestLoadStoreOverridesMissingFile(t *testing.T) {
	o, err := LoadStoreOverrides(filepath.Join(t.TempDir(), "nope.yml"), "dev")
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if !o.Empty() {
		t.Fatal("expected empty resolver")
	}
}
