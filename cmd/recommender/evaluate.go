package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/services"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure Recall@K on a labeled query set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEvaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("train-set", "", "labeled set path (default TRAIN_SET_PATH)")
	evaluateCmd.Flags().String("out-dir", "./evaluation_results", "directory for the JSON report")
	evaluateCmd.Flags().Int("concurrency", 0, "parallel queries (default WORKER_CONCURRENCY)")
}

func runEvaluate(cmd *cobra.Command) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	trainSet, _ := cmd.Flags().GetString("train-set")
	if trainSet == "" {
		trainSet = cfg.Catalog.TrainSetPath
	}
	outDir, _ := cmd.Flags().GetString("out-dir")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = cfg.Worker.Concurrency
	}

	set, err := services.LoadLabeledSet(trainSet)
	if err != nil {
		return err
	}

	ctx := context.Background()

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureIndexed(ctx); err != nil {
		return err
	}

	report, err := services.NewEvaluator(a.recommender, concurrency, log).Run(ctx, set)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(outDir, fmt.Sprintf("evaluation_%s.json", time.Now().Format("20060102_150405")))
	if err := services.WriteReport(path, report); err != nil {
		return err
	}

	ks := make([]int, 0, len(report.MeanRecall))
	for k := range report.MeanRecall {
		ks = append(ks, k)
	}
	sort.Ints(ks)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queries: %d\n", report.Total)
	for _, k := range ks {
		fmt.Fprintf(out, "Mean Recall@%d: %.4f\n", k, report.MeanRecall[k])
	}
	fmt.Fprintf(out, "Misses (not in top 5): %d/%d\n", len(report.Misses), report.Total)

	log.Info("evaluation report written", zap.String("path", path), zap.Duration("duration", report.Duration))
	return nil
}
