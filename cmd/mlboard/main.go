package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mlcomp/mlboard/pkg/config"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFiles []string
	logLevel string
	log      *logrus.Logger
)

func main() {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("Failed to execute command")
	}
}

var rootCmd = &cobra.Command{
	Use:   "mlboard",
	Short: "Dashboard over machine learning experiment storage trees",
	Long: `mlboard loads the experiment storage trees of one or more boards,
groups the experiments by parent directory and serves them, filtered by
run status and fuzzy search, through an HTTP API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}

		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mlboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&cfgFiles, "config", nil,
		"config file path (repeat to merge several files)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level, overrides global.log_level ("+strings.Join(logLevels(), ", ")+")")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates the configuration and applies its log
// level unless --log-level was given.
func loadConfig() (*config.Config, error) {
	if len(cfgFiles) == 0 {
		return nil, fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if logLevel == "" {
		level, err := logrus.ParseLevel(cfg.Global.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Global.LogLevel, err)
		}

		log.SetLevel(level)
	}

	return cfg, nil
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}
