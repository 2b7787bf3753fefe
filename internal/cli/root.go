// Package cli provides the command-line interface for reachpan.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/reachpan/internal/config"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	logLevel  string

	// logOutput is where operational logs go. Results go to stdout.
	logOutput io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "reachpan",
	Short: "Pull page engagement metrics into CSV files or a search index",
	Long: "reachpan walks page feeds of a Graph-style API, enriches posts and videos with " +
		"reactions and insights, and writes them to CSV files with a console summary or " +
		"bulk-loads them into Elasticsearch behind a stable alias.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("reachpan %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".reachpan", "config directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// newLogger builds the console logger. The --log-level flag wins over the
// configured level.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level := logLevel
	if level == "" && cfg != nil {
		level = cfg.Log.Level
	}
	if level == "" {
		level = config.DefaultLogLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	out := zerolog.ConsoleWriter{Out: logOutput, TimeFormat: time.TimeOnly, NoColor: noColor}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// loadConfig loads the config and builds the logger for a command.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
