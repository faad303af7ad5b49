package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mlcomp/mlboard/pkg/api"
	"github.com/mlcomp/mlboard/pkg/board"
	"github.com/mlcomp/mlboard/pkg/loader"
	"github.com/mlcomp/mlboard/pkg/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the board API server",
	Long: `Start the mlboard API server. The configured sources are loaded once
the server is listening and then every api.refresh_interval.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sources, err := source.NewAll(log, cfg.Sources)
	if err != nil {
		return fmt.Errorf("creating sources: %w", err)
	}

	b := board.New(
		log,
		loader.New(log, sources, cfg.Tree, cfg.Loader.Concurrency),
		cfg.Search,
	)

	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	srv := api.NewServer(log, cfg, b)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down API server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}

	return nil
}
