package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mlcomp/mlboard/pkg/config"
	"github.com/mlcomp/mlboard/pkg/loader"
	"github.com/mlcomp/mlboard/pkg/snapshot"
	"github.com/mlcomp/mlboard/pkg/source"
)

var (
	snapshotOutput string
	snapshotOwner  string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Load the sources once and write the merged tree",
	Long: `Load every configured source, mount each tree under its prefix and
write the merged tree to the snapshot destination. The written file or
object can be used as a local or s3 source by another mlboard.`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "",
		"write to this local file instead of the configured destination")
	snapshotCmd.Flags().StringVar(&snapshotOwner, "owner", "",
		"UID:GID owner of the file written with --output")

	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dest := cfg.Snapshot
	if snapshotOutput != "" {
		dest = config.SnapshotConfig{
			Local: &config.LocalSnapshotConfig{Path: snapshotOutput, Owner: snapshotOwner},
		}
	}

	w, err := snapshot.NewWriter(log, &dest)
	if err != nil {
		return fmt.Errorf("creating snapshot writer: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := w.Preflight(ctx); err != nil {
		return fmt.Errorf("snapshot preflight: %w", err)
	}

	sources, err := source.NewAll(log, cfg.Sources)
	if err != nil {
		return fmt.Errorf("creating sources: %w", err)
	}

	res, err := loader.New(log, sources, cfg.Tree, cfg.Loader.Concurrency).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}

	size, err := snapshot.Save(ctx, w, res.Tree)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"location": w.Location(),
		"bytes":    size,
		"groups":   len(res.Groups),
		"failures": len(res.Failures),
	}).Info("Snapshot written")

	if len(res.Failures) > 0 {
		log.Warn("Snapshot is partial: " + res.Summary())
	}

	return nil
}
