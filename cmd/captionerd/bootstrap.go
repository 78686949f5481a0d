package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"captioner/internal/config"
	"captioner/internal/daemonrun"
)

type daemonFlags struct {
	config      string
	logLevel    string
	development bool
	checkOnly   bool
}

// runFunc is swapped in tests so the command can be exercised without
// starting a daemon.
var runFunc = daemonrun.Run

func newCommand() *cobra.Command {
	var flags daemonFlags
	cmd := &cobra.Command{
		Use:           "captionerd",
		Short:         "captioner render daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			if flags.checkOnly {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid\n", path)
				return nil
			}
			return runFunc(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    flags.logLevel,
				Development: flags.development,
			})
		},
	}
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&flags.development, "dev", false, "Include source locations in log records")
	cmd.Flags().BoolVar(&flags.checkOnly, "check-config", false, "Validate the configuration and exit")
	return cmd
}

func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, exists, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if !exists {
		resolved += " (defaults)"
	}
	return cfg, resolved, nil
}

func loadDotEnv(stderr io.Writer) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "warn: load .env: %v\n", err)
	}
}
