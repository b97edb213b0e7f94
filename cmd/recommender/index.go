package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the catalog and write it to the index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIndex(cmd)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("rebuild", false, "clear the index before writing")
}

func runIndex(cmd *cobra.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	if cfg.Index.Backend == config.IndexBackendMemory {
		log.Warn("the memory index lives only as long as this process; use serve to index and serve together")
	}

	ctx := context.Background()

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.syncCatalog(); err != nil {
		return err
	}

	items, err := a.source.Load()
	if err != nil {
		return err
	}

	rebuild, _ := cmd.Flags().GetBool("rebuild")
	report, err := a.indexer.IndexAll(ctx, items, rebuild)
	if err != nil {
		log.Error("indexing failed", zap.Error(err))
		return err
	}

	count, err := a.index.Count(ctx)
	if err != nil {
		return err
	}

	log.Info("index ready",
		zap.Int("written", report.Written),
		zap.Int("zero_vectors", report.ZeroVectors),
		zap.Int("indexed_items", count),
		zap.Duration("duration", report.Duration))

	return nil
}
