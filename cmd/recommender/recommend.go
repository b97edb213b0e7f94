package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <query>",
	Short: "Print recommendations for a query as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecommend(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, query string) error {
	cfg, log, err := setup(cmd)
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

	rec, err := a.recommender.RecommendQuery(ctx, query)
	if err != nil {
		return err
	}

	// do not bother with the error since Recommendation is plain data
	pretty, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))

	return nil
}
