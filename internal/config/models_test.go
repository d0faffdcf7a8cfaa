package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadModelProfiles_Valid(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  - name: papers
    kind: workspace
    baseUrl: http://localhost:3001/api
    apiKey: key-1
    workspace: scientific-papers
  - name: plain
    kind: direct
    model: gpt-4o-mini
    apiKey: key-2
`)

	profiles, err := LoadModelProfiles(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles["papers"].Kind != "workspace" || profiles["papers"].Workspace != "scientific-papers" {
		t.Fatalf("workspace profile mismatch: %+v", profiles["papers"])
	}
	if profiles["plain"].Kind != "direct" || profiles["plain"].Model != "gpt-4o-mini" {
		t.Fatalf("direct profile mismatch: %+v", profiles["plain"])
	}
}

func TestLoadModelProfiles_EnvSubstitution(t *testing.T) {
	t.Setenv("PROFILE_TEST_KEY", "from-env")
	path := writeProfiles(t, `
profiles:
  - name: papers
    kind: workspace
    apiKey: ${PROFILE_TEST_KEY}
`)

	profiles, err := LoadModelProfiles(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if profiles["papers"].APIKey != "from-env" {
		t.Fatalf("expected env substitution, got %q", profiles["papers"].APIKey)
	}
}

func TestLoadModelProfiles_UnknownKind(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  - name: broken
    kind: quantum
`)
	if _, err := LoadModelProfiles(path); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestLoadModelProfiles_MissingName(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  - kind: direct
`)
	if _, err := LoadModelProfiles(path); err == nil {
		t.Fatal("expected error for profile without a name")
	}
}

func TestLoadModelProfiles_Duplicate(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  - name: twice
    kind: direct
  - name: twice
    kind: workspace
`)
	if _, err := LoadModelProfiles(path); err == nil {
		t.Fatal("expected error for duplicate profile name")
	}
}

func TestProfiles_BuiltinFallback(t *testing.T) {
	cfg := Defaults()
	cfg.API.BaseURL = "http://localhost:3001/api"
	cfg.API.APIKey = "builtin-key"
	cfg.API.Workspace = "papers"

	profiles, err := cfg.Profiles()
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	p, ok := profiles["workspace-default"]
	if !ok {
		t.Fatal("expected builtin workspace-default profile")
	}
	if p.Kind != "workspace" || p.APIKey != "builtin-key" || p.Workspace != "papers" {
		t.Fatalf("builtin profile mismatch: %+v", p)
	}
}
