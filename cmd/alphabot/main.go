package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alphabot/internal/admin"
	"alphabot/internal/agent"
	"alphabot/internal/bus"
	"alphabot/internal/channel"
	"alphabot/internal/command"
	"alphabot/internal/config"
	"alphabot/internal/domain"
	"alphabot/internal/feedback"
	"alphabot/internal/logutil"
	"alphabot/internal/metrics"
	"alphabot/internal/policy"
	"alphabot/internal/settings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	version    = command.BotVersion
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "alphabot",
		Short: "alphabot: WhatsApp group management bot",
		Long:  "alphabot answers chat commands, moderates groups and keeps its settings in a local document.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.alphabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(consoleCmd())
	root.AddCommand(configCmd())
	root.AddCommand(settingsCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config and settings documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			store, err := settings.Open(settings.StoreConfig{
				Path:          config.ExpandPath(cfg.Settings.Path),
				DefaultOwners: cfg.Settings.DefaultOwners,
				Logger:        logger,
			})
			if err != nil {
				return fmt.Errorf("settings: %w", err)
			}
			logger.Info("initialized", "config", cfgPath, "settings", store.Path())
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (all enabled channels, admin API and event loop)",
		Long:  "Starts every enabled channel and the event loop. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runBot(cfg)
		},
	}
}

func consoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Chat with the bot in the terminal",
		Long:  "Runs the bot with only the console channel. Type /help for console directives.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
				cfg = config.Defaults()
				cfg.Settings.Path = config.ExpandPath(cfg.Settings.Path)
				cfg.Feedback.Path = config.ExpandPath(cfg.Feedback.Path)
			}
			cfg.Bridge.Enabled = false
			cfg.Telegram.Enabled = false
			cfg.Admin.Enabled = false
			cfg.Console.Enabled = true
			// Keep stdout for the conversation.
			if cfg.General.LogFile == "" {
				cfg.General.LogLevel = "warn"
			}
			return runBot(cfg)
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// buildLogger replaces the bootstrap logger with the configured one. The
// returned closer releases the log file, if any.
func buildLogger(cfg *config.Config) (func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}
	if cfg.General.LogFile != "" {
		f, err := logutil.OpenFile(cfg.General.LogFile)
		if err != nil {
			return closer, err
		}
		w = f
		closer = func() { _ = f.Close() }
	}
	l, err := logutil.New(cfg.General.LogLevel, cfg.General.LogFormat, w)
	if err != nil {
		closer()
		return func() {}, err
	}
	logger = l
	slog.SetDefault(l)
	return closer, nil
}

func runBot(cfg *config.Config) error {
	closeLog, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	events := bus.NewEventBus(logger)
	messageBus := bus.New(100, logger)

	store, err := settings.Open(settings.StoreConfig{
		Path:          cfg.Settings.Path,
		DefaultOwners: cfg.Settings.DefaultOwners,
		Logger:        logger,
	})
	if err != nil {
		// The store keeps running on empty settings.
		logger.Warn("settings unavailable, continuing with empty settings", "err", err)
	}
	if cfg.Settings.Watch {
		go store.Watch(ctx, func(st *settings.Settings) {
			events.Emit(bus.Event{
				Type:    bus.EventSettingsReloaded,
				Source:  "settings",
				Payload: map[string]any{"mode": st.Mode(), "prefix": st.EffectivePrefix()},
			})
		})
	}

	engine, err := policy.NewEngine(policy.EngineConfig{
		ExtraLinkPatterns: cfg.Policy.ExtraLinkPatterns,
		Events:            events,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("policy engine: %w", err)
	}

	dispatcher := command.NewDispatcher(command.DispatcherConfig{
		Store:     store,
		Feedback:  feedback.New(cfg.Feedback.Path),
		Events:    events,
		Pacer:     command.NewPacer(command.Pacing{PerMinute: cfg.Policy.ModerationPerMinute, Burst: cfg.Policy.ModerationBurst}),
		RepoURL:   cfg.General.RepoURL,
		StartedAt: startedAt,
		Exit:      os.Exit,
		Logger:    logger,
	})

	loop := agent.NewLoop(agent.LoopConfig{
		Bus:         messageBus,
		Store:       store,
		Policy:      engine,
		Dispatcher:  dispatcher,
		Dedup:       agent.NewDedup(time.Duration(cfg.General.DedupTTLSeconds) * time.Second),
		Events:      events,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentEvents,
	})
	notifier := agent.NewNotifier(agent.NotifierConfig{
		Bus:    messageBus,
		Store:  store,
		Events: events,
		Delay:  time.Duration(cfg.General.NotifyDelayMs) * time.Millisecond,
		Logger: logger,
	})

	go loop.Run(ctx)
	go notifier.Run(ctx)

	channels := enabledChannels(cfg)
	if len(channels) == 0 {
		return fmt.Errorf("no channels enabled (bridge, telegram or console)")
	}

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		adminSrv = admin.New(admin.Config{
			Addr:           cfg.Admin.Addr(),
			Token:          cfg.Admin.Token,
			WebhookSecret:  cfg.Admin.WebhookSecret,
			DefaultChannel: channels[0].Name(),
			Store:          store,
			Events:         events,
			Bus:            messageBus,
			Metrics:        metrics.Default,
			Logger:         logger,
		})
		go func() {
			if err := adminSrv.Start(ctx); err != nil {
				logger.Error("admin server error", "err", err)
			}
		}()
	}

	// A console running alone owns the process: /quit or EOF stops the bot.
	consoleDone := make(chan struct{})
	consoleOnly := len(channels) == 1 && channels[0].Name() == channel.ConsoleName
	for _, ch := range channels {
		go func(ch domain.Channel) {
			if err := ch.Start(ctx, messageBus); err != nil {
				logger.Error("channel error", "channel", ch.Name(), "err", err)
			}
			if consoleOnly {
				close(consoleDone)
			}
		}(ch)
		logger.Info("channel enabled", "channel", ch.Name())
	}

	logger.Info("alphabot started. Press Ctrl+C to stop.", "version", version, "mode", store.Snapshot().Mode())

	select {
	case <-ctx.Done():
	case <-consoleDone:
		stop()
	}
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range channels {
			if err := ch.Stop(); err != nil {
				logger.Warn("channel stop", "channel", ch.Name(), "err", err)
			}
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

// enabledChannels builds the configured transports. The first entry is the
// default target for events injected through the admin API.
func enabledChannels(cfg *config.Config) []domain.Channel {
	var out []domain.Channel
	if cfg.Bridge.Enabled {
		out = append(out, channel.NewBridge(channel.BridgeConfig{
			URL:       cfg.Bridge.URL,
			Token:     cfg.Bridge.Token,
			Reconnect: time.Duration(cfg.Bridge.ReconnectSeconds) * time.Second,
			Logger:    logger,
		}))
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		out = append(out, channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Telegram.Token,
			ParseMode: "Markdown",
			Logger:    logger,
		}))
	}
	if cfg.Console.Enabled {
		out = append(out, channel.NewConsole(channel.ConsoleConfig{
			SenderID: cfg.Console.SenderID,
			Logger:   logger,
		}))
	}
	return out
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. general.logLevel)",
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
		Short: "Set a config value (e.g. bridge.enabled true)",
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
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			for _, p := range config.ListPaths(config.Sanitize(cfg)) {
				val, _ := json.Marshal(p.Value)
				fmt.Printf("%s = %s\n", p.Key, val)
			}
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

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect the bot settings document",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current bot settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := settings.ReadFile(cfg.Settings.Path)
			if err != nil {
				return err
			}
			return printSettings(cmd.OutOrStdout(), st, format)
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml|json)")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show settings file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Println(cfg.Settings.Path)
			return nil
		},
	})

	return cmd
}

func printSettings(w io.Writer, st *settings.Settings, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(st)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", command.BotName, version)
		},
	}
}
