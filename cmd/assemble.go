package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmprep/interview-cli/internal/assemble"
	"github.com/pmprep/interview-cli/internal/model"
)

var (
	assembleTypes        []string
	assembleDifficulties []string
	assembleMax          int
	assembleEpisode      string
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Generate bank questions from cached intelligence",
	Long:  "Walks cached intelligence records and generates one question per missing (interview type, difficulty) pair, grounded in each episode's richest company.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts, err := assembleOptions()
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Store.ListIntelligence(ctx)
		if err != nil {
			return err
		}
		if assembleEpisode != "" {
			rec, err := env.Store.GetIntelligence(ctx, assembleEpisode)
			if err != nil {
				return err
			}
			if rec == nil {
				return eris.Errorf("episode %s is not cached, run sync or extract first", assembleEpisode)
			}
			recs = []model.Intelligence{*rec}
		}

		asm := assemble.New(env.Gateway, env.Store, opts)
		res, err := asm.Assemble(ctx, recs)
		if err != nil {
			return err
		}

		zap.L().Info("assembly complete",
			zap.Int("generated", len(res.Generated)),
			zap.Int("skipped", res.Skipped),
			zap.Int("errors", len(res.Errors)))

		for _, te := range res.Errors {
			zap.L().Warn("question generation failed",
				zap.String("episode_id", te.Triple.EpisodeID),
				zap.String("type", string(te.Triple.Type)),
				zap.String("difficulty", string(te.Triple.Difficulty)),
				zap.String("reason", te.Reason))
		}
		if res.Aborted {
			zap.L().Warn("assembly aborted early", zap.String("reason", res.AbortReason))
		}
		return nil
	},
}

func assembleOptions() (assemble.Options, error) {
	opts := assemble.Options{
		MaxQuestions: assembleMax,
		Pace:         cfg.Pipeline.Pace,
	}
	for _, raw := range assembleTypes {
		t := model.InterviewType(raw)
		if !t.Valid() {
			return opts, eris.Errorf("unknown interview type %q", raw)
		}
		opts.Types = append(opts.Types, t)
	}
	for _, raw := range assembleDifficulties {
		d := model.Difficulty(raw)
		if !d.Valid() {
			return opts, eris.Errorf("unknown difficulty %q", raw)
		}
		opts.Difficulties = append(opts.Difficulties, d)
	}
	return opts, nil
}

func init() {
	assembleCmd.Flags().StringSliceVar(&assembleTypes, "types", nil, "interview types to generate (default all)")
	assembleCmd.Flags().StringSliceVar(&assembleDifficulties, "difficulties", nil, "difficulties to generate (default all)")
	assembleCmd.Flags().IntVar(&assembleMax, "max", 0, "cap on questions generated this run (0 = no cap)")
	assembleCmd.Flags().StringVar(&assembleEpisode, "episode", "", "assemble for a single cached episode only")
	rootCmd.AddCommand(assembleCmd)
}
