package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmprep/interview-cli/internal/model"
)

var (
	extractEpisode string
	extractForce   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract intelligence from a single episode",
	Long:  "Fetches one transcript by id and runs LLM extraction on it. Already-cached episodes are skipped unless --force re-extracts and overwrites.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if !extractForce {
			has, err := env.Store.HasIntelligence(ctx, extractEpisode)
			if err != nil {
				return err
			}
			if has {
				zap.L().Info("episode already cached, use --force to re-extract",
					zap.String("episode_id", extractEpisode))
				return nil
			}
		}

		header, err := env.Source.FetchTranscriptHeader(ctx, extractEpisode)
		if err != nil {
			return err
		}
		if header == nil {
			return eris.Errorf("episode %s has an unparseable header", extractEpisode)
		}
		body, err := env.Source.FetchTranscriptBody(ctx, extractEpisode)
		if err != nil {
			return err
		}

		rec, err := env.Extractor.Extract(ctx, model.Transcript{
			EpisodeID:    extractEpisode,
			GuestName:    header.GuestName,
			EpisodeTitle: header.EpisodeTitle,
			Body:         body,
		})
		if err != nil {
			return err
		}
		if err := env.Store.UpsertIntelligence(ctx, rec); err != nil {
			return err
		}

		zap.L().Info("extraction complete",
			zap.String("episode_id", rec.EpisodeID),
			zap.String("guest", rec.GuestName),
			zap.Int("companies", len(rec.Companies)),
			zap.Int("frameworks", len(rec.Frameworks)),
			zap.Int("quotes", len(rec.MemorableQuotes)))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractEpisode, "episode", "", "episode id to extract (required)")
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "re-extract even when cached")
	_ = extractCmd.MarkFlagRequired("episode")
	rootCmd.AddCommand(extractCmd)
}
