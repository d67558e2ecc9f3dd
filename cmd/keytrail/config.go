package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"keytrail/internal/config"
)

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or create the configuration"}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := config.Encode(a.cfg, "."+format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	show.Flags().StringVar(&format, "format", "toml", "output format: toml|json|yaml")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := *configPath
			if path == "" {
				path = config.ConfigPath()
			}
			cfg, created, err := config.LoadOrCreate(path)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			}
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and list warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := *configPath
			if path == "" {
				path = config.ConfigPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			problems := config.Check(cfg)
			out := cmd.OutOrStdout()
			for _, w := range problems.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", w.Error())
			}
			if problems.HasErrors() {
				return problems.Errors()
			}
			fmt.Fprintf(out, "%s: ok\n", filepath.Clean(path))
			return nil
		},
	}

	cmd.AddCommand(show, initCmd, check)
	return cmd
}
