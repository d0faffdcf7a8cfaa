package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperbot/internal/agent"
	"paperbot/internal/backend"
	"paperbot/internal/bus"
	"paperbot/internal/channel"
	"paperbot/internal/config"
	"paperbot/internal/domain"
	"paperbot/internal/library"
	"paperbot/internal/transcript"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Local .env carries the ANYTHINGLLM_* variables in development setups;
	// absence is fine.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:           "paperbot",
		Short:         "paperbot: workspace-RAG research assistant",
		Long:          "Paperbot answers questions about your paper library by delegating retrieval and generation to an AnythingLLM-compatible workspace.",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.paperbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(askCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(summarizeCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(uploadCmd())
	root.AddCommand(samplesCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(workspaceCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag, the
// PAPERBOT_CONFIG environment variable, or the default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("PAPERBOT_CONFIG"); env != "" {
		return env
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w (run 'paperbot init' first)", err)
	}
	applyLogLevel(cfg.Logging.Level)
	return cfg, nil
}

func applyLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func apiTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.API.TimeoutSeconds) * time.Second
}

// buildBackend resolves the agent's model profile into a concrete backend.
// When no profile can be built (typically a missing API key) the turn still
// has to work, so it falls back to direct generation.
func buildBackend(cfg *config.Config) (domain.Backend, error) {
	profiles, err := cfg.Profiles()
	if err != nil {
		return nil, err
	}
	factory := backend.NewFactory(profiles, cfg.Agent.ModelConfig, apiTimeout(cfg), logger)
	b, err := factory.Get(cfg.Agent.ModelConfig)
	if err != nil {
		logger.Warn("backend profile unavailable, falling back to direct generation",
			"profile", cfg.Agent.ModelConfig, "error", err)
		return backend.NewDirect(backend.DirectConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Timeout: apiTimeout(cfg),
			Logger:  logger,
		}), nil
	}
	return b, nil
}

// workspaceClient builds the workspace REST client from the api section,
// independent of which profile the agent dispatches to. Used by the
// document commands (upload, search, workspace, doctor).
func workspaceClient(cfg *config.Config) (*backend.Workspace, error) {
	return backend.NewWorkspace(backend.WorkspaceConfig{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		Slug:    cfg.API.Workspace,
		Timeout: apiTimeout(cfg),
		Logger:  logger,
	})
}

// runtime bundles the pieces a conversational command needs: the spoken
// bus, the transcript store feeding off it, and the agent itself.
type runtime struct {
	cfg      *config.Config
	bus      *bus.InMemoryBus
	store    *transcript.SQLiteStore
	recorder *transcript.Recorder
	agent    *agent.Agent
	turns    *channel.Turns
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	b, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	spoken := bus.New(logger)

	store, err := transcript.NewSQLiteStore(cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("transcript store: %w", err)
	}
	recorder := transcript.NewRecorder(store, logger)
	recorder.Attach(spoken)

	ag, err := agent.New(agent.Config{
		Name:         cfg.Agent.Name,
		SystemPrompt: cfg.Agent.SystemPrompt,
		Backend:      b,
		MemoryLimit:  cfg.Agent.MemoryLimit,
		Bus:          spoken,
		Logger:       logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		bus:      spoken,
		store:    store,
		recorder: recorder,
		agent:    ag,
		turns:    channel.NewTurns(ag, recorder, logger),
	}, nil
}

func (r *runtime) Close() {
	r.bus.Close()
	_ = r.store.Close()
}

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}

			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			papersDir := config.ExpandPath(cfg.Library.PapersDir)
			if err := os.MkdirAll(papersDir, 0o755); err != nil {
				return err
			}

			fmt.Printf("Config written to %s\n", cfgPath)
			fmt.Printf("Papers directory: %s\n\n", papersDir)
			fmt.Println("Next steps:")
			fmt.Println("  1. export ANYTHINGLLM_API_KEY=<your key>   (or set api.apiKey)")
			fmt.Println("  2. paperbot doctor                         (verify the service is reachable)")
			fmt.Println("  3. paperbot samples && paperbot upload     (seed and index the library)")
			fmt.Println("  4. paperbot chat")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			cli := channel.NewCLI(channel.CLIConfig{Turns: rt.turns, Logger: logger})
			return cli.Start(ctx)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web gateway and enabled chat channels",
		Long:  "Starts the HTTP gateway and every enabled channel (Telegram, Slack, Discord). Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.agent.Healthy(ctx); err != nil {
		logger.Warn("backend unhealthy at startup", "error", err)
	}

	var lib *library.Library
	if ws, err := workspaceClient(cfg); err != nil {
		logger.Warn("workspace uploads disabled", "error", err)
	} else {
		lib, err = library.New(library.Config{
			Dir:        cfg.Library.PapersDir,
			Extensions: cfg.Library.Extensions,
			Uploader:   ws,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
	}

	var channels []domain.Channel

	if cfg.Channels.Web.Enabled {
		channels = append(channels, channel.NewWeb(channel.WebConfig{
			Host:       cfg.Channels.Web.Host,
			Port:       cfg.Channels.Web.Port,
			Turns:      rt.turns,
			Feed:       rt.bus,
			Store:      rt.store,
			Library:    lib,
			HookSecret: cfg.Channels.Web.HookSecret,
			Version:    version,
			Logger:     logger,
		}))
	}
	if cfg.Channels.Telegram.Enabled {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			Turns:     rt.turns,
			Logger:    logger,
		}))
	}
	if cfg.Channels.Slack.Enabled {
		channels = append(channels, channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Channels.Slack.BotToken,
			AppToken: cfg.Channels.Slack.AppToken,
			Turns:    rt.turns,
			Logger:   logger,
		}))
	}
	if cfg.Channels.Discord.Enabled {
		channels = append(channels, channel.NewDiscord(channel.DiscordConfig{
			Token:  cfg.Channels.Discord.Token,
			Turns:  rt.turns,
			Logger: logger,
		}))
	}

	if len(channels) == 0 {
		return fmt.Errorf("no channels enabled; enable channels.web (or a chat channel) in the config")
	}

	for _, ch := range channels {
		go func(ch domain.Channel) {
			if err := ch.Start(ctx); err != nil {
				logger.Error("channel error", "channel", ch.Name(), "error", err)
			}
		}(ch)
		logger.Info("channel enabled", "channel", ch.Name())
	}

	logger.Info("paperbot started. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("shutting down...")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range channels {
			if err := ch.Stop(); err != nil {
				logger.Warn("channel stop", "channel", ch.Name(), "error", err)
			}
		}
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("shutdown timed out")
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and transcript status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				fmt.Printf("Config:     %s (not loaded: %v)\n", cfgPath, err)
				return nil
			}

			fmt.Printf("Config:     %s\n", cfgPath)
			fmt.Printf("Agent:      %s (profile %s, memory limit %d)\n",
				cfg.Agent.Name, cfg.Agent.ModelConfig, cfg.Agent.MemoryLimit)
			fmt.Printf("Service:    %s (workspace %s)\n", cfg.API.BaseURL, cfg.API.Workspace)
			fmt.Printf("Library:    %s\n", cfg.Library.PapersDir)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if ws, err := workspaceClient(cfg); err != nil {
				fmt.Printf("Workspace:  unavailable (%v)\n", err)
			} else if err := ws.Healthy(ctx); err != nil {
				fmt.Printf("Workspace:  unreachable (%v)\n", err)
			} else {
				fmt.Printf("Workspace:  reachable\n")
			}

			store, err := transcript.NewSQLiteStore(cfg.Storage.DBPath, logger)
			if err != nil {
				fmt.Printf("Transcript: unavailable (%v)\n", err)
				return nil
			}
			defer store.Close()

			convs, _ := store.ListConversations(ctx, 0)
			count, _ := store.CountEntries(ctx)
			fmt.Printf("Transcript: %d conversations, %d messages (%s)\n",
				len(convs), count, cfg.Storage.DBPath)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. api.workspace)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. agent.memoryLimit 100)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
