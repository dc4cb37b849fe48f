package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestBudget int

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Print the summary block include would add for a file or directory",
	Long: `Summarizes path (default: current directory) exactly as the include
command does, filling the summary cache, and prints the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := prepareRuntimeEnv(cmd.Context(), debugFlag)
		if err != nil {
			return err
		}
		defer env.Close()

		path := workDir()
		if len(args) == 1 {
			path = args[0]
		}
		budget := env.cfg.TokenBudget
		if ingestBudget > 0 {
			budget = ingestBudget
		}

		text := env.ingestor.Ingest(cmd.Context(), path, budget)
		if text == "" {
			return fmt.Errorf("nothing to ingest at %s", path)
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBudget, "budget", 0, "token budget (default from cfg.json)")
}
