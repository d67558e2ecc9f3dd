// keytrail records key input into encrypted session logs and manages the
// saved logs afterwards.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keytrail/internal/cipher"
	"keytrail/internal/config"
	"keytrail/internal/logging"
	"keytrail/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "keytrail",
		Short:         "Record key input into encrypted session logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: platform config dir)")

	root.AddCommand(newRecordCmd(&configPath))
	root.AddCommand(newDecryptCmd(&configPath))
	root.AddCommand(newLastCmd(&configPath))
	root.AddCommand(newListCmd(&configPath))
	root.AddCommand(newExportCmd(&configPath))
	root.AddCommand(newVerifyCmd(&configPath))
	root.AddCommand(newConfigCmd(&configPath))
	return root
}

// app bundles what every command needs after loading the configuration.
type app struct {
	loader *config.Loader
	cfg    *config.Config
	logger *logging.Logger
}

func loadApp(configPath string) (*app, error) {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", loader.Path(), err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return &app{loader: loader, cfg: cfg, logger: logger}, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   config.ExpandPath(cfg.Logging.FilePath),
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "keytrail",
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return logger, nil
}

func (a *app) close() {
	a.loader.Close()
	a.logger.Close()
}

func (a *app) cipher() (*cipher.LineCipher, error) {
	return cipher.New(a.cfg.Cipher.Passphrase, a.cfg.Cipher.Salt)
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(config.ExpandPath(a.cfg.Storage.Path))
}
