package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_EmptyBaseURL(t *testing.T) {
	cfg := Defaults()
	cfg.API.BaseURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty api.baseUrl")
	}
}

func TestValidate_EmptyWorkspace(t *testing.T) {
	cfg := Defaults()
	cfg.API.Workspace = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty api.workspace")
	}
}

func TestValidate_NegativeMemoryLimit(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.MemoryLimit = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative memoryLimit")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Web.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Channels.Web.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_EnabledChannelNeedsToken(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled telegram without token")
	}

	cfg = Defaults()
	cfg.Channels.Slack.Enabled = true
	cfg.Channels.Slack.BotToken = "xoxb-123"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled slack without app token")
	}

	cfg = Defaults()
	cfg.Channels.Discord.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled discord without token")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Agent.Name = "test-agent"
	original.API.Workspace = "test-workspace"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Agent.Name != "test-agent" {
		t.Fatalf("expected 'test-agent', got %q", loaded.Agent.Name)
	}
	if loaded.API.Workspace != "test-workspace" {
		t.Fatalf("expected 'test-workspace', got %q", loaded.API.Workspace)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_DefaultsOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	// A sparse file keeps every unmentioned default.
	os.WriteFile(path, []byte(`{"agent": {"name": "custom"}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Name != "custom" {
		t.Fatalf("expected 'custom', got %q", cfg.Agent.Name)
	}
	if cfg.API.TimeoutSeconds != 120 {
		t.Fatalf("expected default timeout 120, got %d", cfg.API.TimeoutSeconds)
	}
	if len(cfg.Library.Extensions) == 0 {
		t.Fatal("expected default library extensions")
	}
}

func TestLoad_EnvContract(t *testing.T) {
	t.Setenv("ANYTHINGLLM_API_URL", "http://rag.example:3001/api")
	t.Setenv("ANYTHINGLLM_API_KEY", "test-key-123")
	t.Setenv("ANYTHINGLLM_WORKSPACE_SLUG", "my-papers")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "http://rag.example:3001/api" {
		t.Fatalf("baseUrl not taken from environment: %q", cfg.API.BaseURL)
	}
	if cfg.API.APIKey != "test-key-123" {
		t.Fatalf("apiKey not taken from environment: %q", cfg.API.APIKey)
	}
	if cfg.API.Workspace != "my-papers" {
		t.Fatalf("workspace not taken from environment: %q", cfg.API.Workspace)
	}
}

func TestLoad_MissingAPIKeyResolvesEmpty(t *testing.T) {
	os.Unsetenv("ANYTHINGLLM_API_KEY")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.APIKey != "" {
		t.Fatalf("unset key should resolve to empty, got %q", cfg.API.APIKey)
	}
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "agent.name")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "scientist" {
		t.Fatalf("expected 'scientist', got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	_, err := GetByPath(cfg, "nonexistent.path")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
}

func TestSetByPath_ValidPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "api.workspace", "new-workspace"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.API.Workspace != "new-workspace" {
		t.Fatalf("expected 'new-workspace', got %q", cfg.API.Workspace)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "channels.web.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if !cfg.Channels.Web.Enabled {
		t.Fatal("expected channels.web.enabled=true")
	}
}

func TestSetByPath_IntConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "agent.memoryLimit", "100"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if cfg.Agent.MemoryLimit != 100 {
		t.Fatalf("expected 100, got %d", cfg.Agent.MemoryLimit)
	}
}

// --- Sanitize ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.API.APIKey = "sk-1234567890abcdefghijklmnop"
	cfg.Channels.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"

	sanitized := Sanitize(cfg)

	if sanitized.API.APIKey == cfg.API.APIKey {
		t.Fatal("API key should be masked")
	}
	if sanitized.Channels.Telegram.Token == cfg.Channels.Telegram.Token {
		t.Fatal("telegram token should be masked")
	}
	// Verify original is untouched
	if cfg.API.APIKey != "sk-1234567890abcdefghijklmnop" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	cfg.API.APIKey = "short"
	sanitized := Sanitize(cfg)
	if sanitized.API.APIKey != "***" {
		t.Fatalf("short secret should be '***', got %q", sanitized.API.APIKey)
	}
}

// --- ListPaths ---

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	cfg := Defaults()
	paths := ListPaths(cfg)
	if len(paths) == 0 {
		t.Fatal("expected non-empty paths")
	}

	// Check some known paths exist
	for _, expected := range []string{"api.workspace", "agent.name", "storage.dbPath"} {
		if _, ok := paths[expected]; !ok {
			t.Errorf("missing expected path: %s", expected)
		}
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-abc123")
	result := ExpandEnvVars(`{"apiKey": "${TEST_API_KEY}"}`)
	expected := `{"apiKey": "sk-abc123"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR_12345")
	result := ExpandEnvVars(`{"port": "${NONEXISTENT_VAR_12345:-8080}"}`)
	expected := `{"port": "8080"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_SetVarOverridesDefault(t *testing.T) {
	t.Setenv("MY_PORT", "9090")
	result := ExpandEnvVars(`{"port": "${MY_PORT:-8080}"}`)
	expected := `{"port": "9090"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_MultipleVars(t *testing.T) {
	t.Setenv("HOST", "localhost")
	t.Setenv("PORT", "3000")
	result := ExpandEnvVars(`"${HOST}:${PORT}"`)
	expected := `"localhost:3000"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("TOTALLY_UNSET_VAR_XYZ")
	result := ExpandEnvVars(`"${TOTALLY_UNSET_VAR_XYZ}"`)
	expected := `"${TOTALLY_UNSET_VAR_XYZ}"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_EmptyVarUsesDefault(t *testing.T) {
	t.Setenv("EMPTY_VAR", "")
	result := ExpandEnvVars(`"${EMPTY_VAR:-fallback}"`)
	expected := `"fallback"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_DollarSignWithoutBraces(t *testing.T) {
	input := `"$HOME is not substituted"`
	result := ExpandEnvVars(input)
	if result != input {
		t.Fatalf("expected no change for bare $VAR, got %q", result)
	}
}

// --- Defaults ---

func TestDefaults_ReturnsValidConfig(t *testing.T) {
	cfg := Defaults()
	if cfg == nil {
		t.Fatal("defaults returned nil")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if cfg.Agent.ModelConfig != "workspace-default" {
		t.Fatalf("default profile should be 'workspace-default', got %q", cfg.Agent.ModelConfig)
	}
	if cfg.Agent.MemoryLimit <= 0 {
		t.Fatal("defaults should bound memory growth")
	}
}
