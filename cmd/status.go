package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmprep/interview-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and question bank counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids, err := env.Store.ListIntelligenceIDs(ctx)
		if err != nil {
			return err
		}

		totalQuestions := 0
		byType := map[model.InterviewType]int{}
		byDifficulty := map[model.Difficulty]int{}
		for _, id := range ids {
			triples, err := env.Store.ListQuestionTriples(ctx, id)
			if err != nil {
				return err
			}
			totalQuestions += len(triples)
			for _, tr := range triples {
				byType[tr.Type]++
				byDifficulty[tr.Difficulty]++
			}
		}

		fmt.Printf("store driver:       %s\n", cfg.Store.Driver)
		fmt.Printf("cached episodes:    %d\n", len(ids))
		fmt.Printf("bank questions:     %d\n", totalQuestions)
		if totalQuestions > 0 {
			fmt.Println("\nby type:")
			for _, typ := range model.AllInterviewTypes() {
				if n := byType[typ]; n > 0 {
					fmt.Printf("  %-16s %d\n", typ, n)
				}
			}
			fmt.Println("\nby difficulty:")
			for _, diff := range model.AllDifficulties() {
				if n := byDifficulty[diff]; n > 0 {
					fmt.Printf("  %-16s %d\n", diff, n)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
