package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "portfolio",
		Short:        "Personal portfolio site with an AI chat assistant and a blog",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path of the config file (default <user config dir>/portfolio/config.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newPostCmd(opts),
	)
	return cmd
}

// load reads the config and builds the logger it asks for.
func (o *rootOptions) load() (config, *slog.Logger, error) {
	path := o.configPath
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return config{}, nil, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return config{}, nil, err
	}

	level, err := cfg.logLevel()
	if err != nil {
		return config{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return cfg, logger, nil
}

// dbPath returns the post database location, creating the config directory for the default one.
func (c config) dbPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}
	return filepath.Join(dir, "posts.db"), nil
}
