package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for paperbot.
type Config struct {
	API      APIConfig      `json:"api"`
	Agent    AgentConfig    `json:"agent"`
	Models   ModelsConfig   `json:"models"`
	Channels ChannelsConfig `json:"channels"`
	Library  LibraryConfig  `json:"library"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
}

// APIConfig locates the workspace RAG service. Each field resolves in order:
// explicit value in the file, then the environment variable named in the
// default template, then the built-in default.
type APIConfig struct {
	BaseURL        string `json:"baseUrl"`
	APIKey         string `json:"apiKey"`
	Workspace      string `json:"workspace"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// AgentConfig describes the single agent identity this process runs.
type AgentConfig struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"systemPrompt"`
	// ModelConfig names the backend profile the agent dispatches to.
	ModelConfig string `json:"modelConfig"`
	// MemoryLimit caps retained memory entries; 0 keeps everything.
	MemoryLimit int `json:"memoryLimit"`
}

// ModelsConfig locates the YAML backend profiles file. An empty path falls
// back to a single built-in workspace profile derived from the api section.
type ModelsConfig struct {
	Path string `json:"path,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	Web      WebConfig      `json:"web"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	AppToken string `json:"appToken"` // required for Socket Mode
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	// HookSecret enables HMAC verification on the paper ingestion hook.
	HookSecret string `json:"hookSecret,omitempty"`
}

// LibraryConfig controls the local document library fed into the workspace.
type LibraryConfig struct {
	PapersDir  string   `json:"papersDir"`
	Extensions []string `json:"extensions"`
}

type StorageConfig struct {
	DBPath string `json:"dbPath"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// DefaultConfigDir returns the default config directory (~/.paperbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".paperbot"
	}
	return filepath.Join(home, ".paperbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	cfg.resolve()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// resolve expands env templates left by Defaults and normalizes paths.
// Running it twice is harmless.
func (c *Config) resolve() {
	c.API.BaseURL = ExpandEnvVars(c.API.BaseURL)
	c.API.APIKey = ExpandEnvVars(c.API.APIKey)
	c.API.Workspace = ExpandEnvVars(c.API.Workspace)

	// An unset variable without a default leaves the ${VAR} literal behind;
	// treat that as empty rather than passing it to the service.
	if strings.HasPrefix(c.API.APIKey, "${") {
		c.API.APIKey = ""
	}

	c.Library.PapersDir = ExpandPath(c.Library.PapersDir)
	c.Storage.DBPath = ExpandPath(c.Storage.DBPath)
	c.Models.Path = ExpandPath(c.Models.Path)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values. The API key is checked
// at backend construction, not here, so commands that never reach the
// service still run.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.API.BaseURL == "" {
		errs = append(errs, "api.baseUrl must not be empty")
	}
	if cfg.API.Workspace == "" {
		errs = append(errs, "api.workspace must not be empty")
	}
	if cfg.API.TimeoutSeconds < 0 {
		errs = append(errs, "api.timeoutSeconds must be >= 0")
	}
	if cfg.Agent.Name == "" {
		errs = append(errs, "agent.name must not be empty")
	}
	if cfg.Agent.MemoryLimit < 0 {
		errs = append(errs, "agent.memoryLimit must be >= 0")
	}
	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Channels.Slack.Enabled && (cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.AppToken == "") {
		errs = append(errs, "channels.slack: botToken and appToken are required when enabled")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram: token is required when enabled")
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		errs = append(errs, "channels.discord: token is required when enabled")
	}
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
