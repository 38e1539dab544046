package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tubeguard/internal/settings"
)

// commandContext carries values shared by every subcommand.
type commandContext struct {
	settingsPath *string
	logger       *log.Logger
}

func (c *commandContext) store() (*settings.FileStore, error) {
	path := strings.TrimSpace(*c.settingsPath)
	if path == "" {
		p, err := defaultSettingsPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return settings.NewFileStore(path), nil
}

// defaultSettingsPath honours TUBEGUARD_SETTINGS, then the user config dir.
func defaultSettingsPath() (string, error) {
	if env := strings.TrimSpace(os.Getenv("TUBEGUARD_SETTINGS")); env != "" {
		return env, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine config dir: %w", err)
	}
	return filepath.Join(dir, "tubeguard", "settings.toml"), nil
}

func newRootCommand() *cobra.Command {
	var settingsFlag string

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	ctx := &commandContext{settingsPath: &settingsFlag, logger: log.Default()}

	rootCmd := &cobra.Command{
		Use:           "tubeguard",
		Short:         "Keep YouTube content suppression preferences applied to a browser tab",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&settingsFlag, "settings", "s", "", "Settings file path")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newCompileCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))
	return rootCmd
}
