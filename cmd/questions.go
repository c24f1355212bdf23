package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pmprep/interview-cli/internal/model"
	"github.com/pmprep/interview-cli/internal/store"
)

var (
	questionsType       string
	questionsDifficulty string
	questionsCompany    string
	questionsLimit      int
	questionsFormat     string
	questionsOut        string
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List or export bank questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter := store.QuestionFilter{
			Type:       model.InterviewType(questionsType),
			Difficulty: model.Difficulty(questionsDifficulty),
			Company:    questionsCompany,
			Limit:      questionsLimit,
		}
		if filter.Type != "" && !filter.Type.Valid() {
			return eris.Errorf("unknown interview type %q", questionsType)
		}
		if filter.Difficulty != "" && !filter.Difficulty.Valid() {
			return eris.Errorf("unknown difficulty %q", questionsDifficulty)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		questions, err := env.Store.QueryQuestions(ctx, filter)
		if err != nil {
			return err
		}

		out := os.Stdout
		if questionsOut != "" {
			f, err := os.Create(questionsOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", questionsOut)
			}
			defer f.Close()
			out = f
		}

		return writeQuestions(out, questionsFormat, questions)
	},
}

// writeQuestions renders the bank rows in the requested format. The yaml
// encoder buffers its stream end, so it must be closed before the caller
// closes the destination file.
func writeQuestions(out io.Writer, format string, questions []model.Question) error {
	switch format {
	case "table":
		for _, q := range questions {
			fmt.Fprintf(out, "%-14s %-8s %-20s %s\n", q.Type, q.Difficulty, q.Company, q.Question)
		}
		fmt.Fprintf(out, "\n%d question(s)\n", len(questions))
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(questions)
	case "yaml":
		enc := yaml.NewEncoder(out)
		if err := enc.Encode(questions); err != nil {
			return err
		}
		return enc.Close()
	}
	return eris.Errorf("unknown format %q (want table, json, or yaml)", format)
}

func init() {
	questionsCmd.Flags().StringVar(&questionsType, "type", "", "filter by interview type")
	questionsCmd.Flags().StringVar(&questionsDifficulty, "difficulty", "", "filter by difficulty")
	questionsCmd.Flags().StringVar(&questionsCompany, "company", "", "filter by company (case-insensitive)")
	questionsCmd.Flags().IntVar(&questionsLimit, "limit", 0, "max questions returned (default 100)")
	questionsCmd.Flags().StringVar(&questionsFormat, "format", "table", "output format: table, json, or yaml")
	questionsCmd.Flags().StringVar(&questionsOut, "out", "", "write to file instead of stdout")
	rootCmd.AddCommand(questionsCmd)
}
