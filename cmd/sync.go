package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmprep/interview-cli/internal/syncer"
)

var (
	syncSeedOnly  bool
	syncBatchSize int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Extract intelligence from transcripts not yet cached",
	Long:  "Lists the transcript catalog, diffs it against the local cache, and runs LLM extraction over only the new episodes, in bounded batches.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		batchSize := syncBatchSize
		if batchSize == 0 {
			batchSize = cfg.Pipeline.BatchSize
		}

		s := syncer.New(env.Source, env.Store, env.Extractor, syncer.Options{
			BatchSize:        batchSize,
			FetchConcurrency: cfg.Pipeline.FetchConcurrency,
			SeedOnly:         syncSeedOnly,
		})

		summary, err := s.SyncNew(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("sync complete",
			zap.Int("total_known", summary.TotalKnown),
			zap.Int("already_cached", summary.AlreadyCached),
			zap.Int("newly_processed", summary.NewlyProcessed),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", len(summary.Failed)))

		for _, f := range summary.Failed {
			zap.L().Warn("episode failed", zap.String("episode_id", f.ID), zap.String("reason", f.Reason))
		}
		if summary.Aborted {
			zap.L().Warn("sync aborted early", zap.String("reason", summary.AbortReason))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncSeedOnly, "seed-only", false, "cache header metadata only, skip LLM extraction")
	syncCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "episodes per batch (default from config)")
	rootCmd.AddCommand(syncCmd)
}
