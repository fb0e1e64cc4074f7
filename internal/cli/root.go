// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatstore/internal/config"
	"github.com/jeranaias/chatstore/internal/logging"
	"github.com/jeranaias/chatstore/internal/metrics"
	"github.com/jeranaias/chatstore/internal/model"
	"github.com/jeranaias/chatstore/internal/storage"
	"github.com/jeranaias/chatstore/internal/store"
)

// Version is reported by --version.
var Version = "dev"

// App carries what every command needs once the root command has run its
// pre-run hook.
type App struct {
	configPath string
	logLevel   string

	Config  *config.Config
	Log     *logrus.Logger
	Metrics *metrics.Metrics
	Store   *store.Store

	kv        storage.KV
	logCloser io.Closer
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{}
	root := newRootCommand(app)
	err := root.ExecuteContext(ctx)
	app.Close()

	if err != nil {
		fmt.Fprintln(os.Stderr, RenderConditional(ErrorStyle, "[Error]"), err)
		return ExitCode(err)
	}
	return ExitSuccess
}

func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "chatstore",
		Short: "Conversation store for assistant chats",
		Long: `chatstore keeps assistant conversations, their message logs and chat
settings in a durable key-value backend (file, sqlite, redis or memory).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.Open(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "",
		"Config file (default ~/.chatstore/config.toml)")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "",
		"Log level (trace,debug,info,warn,error)")

	root.AddCommand(
		newListCommand(app),
		newNewCommand(app),
		newShowCommand(app),
		newSendCommand(app),
		newRegenerateCommand(app),
		newRmCommand(app),
		newRmMessageCommand(app),
		newRenameCommand(app),
		newPinCommand(app, true),
		newPinCommand(app, false),
		newSearchCommand(app),
		newExportCommand(app),
		newImportCommand(app),
		newSettingsCommand(app),
		newChatCommand(app),
	)
	return root
}

// Open loads configuration, sets up logging and opens the store.
func (a *App) Open(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "load .env")
	}

	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.Config = cfg

	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	a.Log, a.logCloser = logger, closer

	kv, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrapf(err, "open %s storage", cfg.Storage.Backend)
	}
	a.kv = kv

	if cfg.Metrics.Addr != "" {
		a.Metrics = metrics.New()
	}

	defaults := settingsFromConfig(cfg.Defaults)
	st, err := store.New(ctx, store.Options{
		KV:              kv,
		Logger:          logrus.NewEntry(logger),
		Metrics:         a.Metrics,
		Timing:          cfg.Timing,
		DefaultSettings: &defaults,
	})
	if err != nil {
		return err
	}
	a.Store = st

	logger.WithFields(logrus.Fields{
		"backend":       cfg.Storage.Backend,
		"conversations": len(st.Conversations()),
	}).Debug("store opened")
	return nil
}

// Close waits for pending generations and releases the backend.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
		a.Store = nil
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil && a.Log != nil {
			a.Log.WithError(err).Warn("closing storage")
		}
		a.kv = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// settingsFromConfig seeds chat settings from the [defaults] section.
func settingsFromConfig(d config.DefaultsConfig) model.Settings {
	return defaultsPatch(d).Apply(model.DefaultSettings())
}

// defaultsPatch turns the [defaults] section into a settings patch.
func defaultsPatch(d config.DefaultsConfig) model.SettingsPatch {
	var p model.SettingsPatch
	if d.Model != "" {
		p.Model = model.Ptr(d.Model)
	}
	p.Temperature = model.Ptr(d.Temperature)
	if d.MaxTokens > 0 {
		p.MaxTokens = model.Ptr(d.MaxTokens)
	}
	if d.SystemPrompt != "" {
		p.SystemPrompt = model.Ptr(d.SystemPrompt)
	}
	return p
}
