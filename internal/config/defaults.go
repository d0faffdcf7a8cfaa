package config

// Defaults returns the baseline configuration. The api section carries env
// templates so a bare config file still honors the service's environment
// contract; Load expands them.
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "${ANYTHINGLLM_API_URL:-http://localhost:3001/api}",
			APIKey:         "${ANYTHINGLLM_API_KEY}",
			Workspace:      "${ANYTHINGLLM_WORKSPACE_SLUG:-scientific-papers}",
			TimeoutSeconds: 120,
		},
		Agent: AgentConfig{
			Name:         "scientist",
			SystemPrompt: "You are a research assistant specialized in scientific papers. Answer questions using the workspace documents and cite the papers you rely on.",
			ModelConfig:  "workspace-default",
			MemoryLimit:  50,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled: false,
			},
			Slack: SlackConfig{
				Enabled: false,
			},
			Discord: DiscordConfig{
				Enabled: false,
			},
			Web: WebConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8787,
			},
		},
		Library: LibraryConfig{
			PapersDir:  "~/.paperbot/papers",
			Extensions: []string{".txt", ".md"},
		},
		Storage: StorageConfig{
			DBPath: "~/.paperbot/transcript.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
