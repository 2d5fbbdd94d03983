package main

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/diffevo/internal/benchmark"
	"github.com/copyleftdev/diffevo/internal/optimization/evolution"
)

var (
	suiteOpts runFlags
	suiteDims []int
)

var suiteCmd = &cobra.Command{
	Use:       "suite <classic|dg>",
	Short:     "Run every benchmark problem",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: evolution.Strategies(),
	RunE:      runSuite,
}

func init() {
	suiteOpts.register(suiteCmd.Flags())
	suiteCmd.Flags().IntSliceVar(&suiteDims, "dims", benchmark.DefaultDimensions, "Dimensions of the scalable problems")
	rootCmd.AddCommand(suiteCmd)
}

func runSuite(cmd *cobra.Command, args []string) error {
	st, err := suiteOpts.openStore(cmd.Context())
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	problems := benchmark.Suite(suiteDims...)
	logger.Info("Starting suite", map[string]interface{}{
		"strategy": args[0],
		"problems": len(problems),
		"attempts": suiteOpts.attempts,
	})

	summaries, err := suiteOpts.runner(cmd, args[0], st).RunSuite(cmd.Context(), problems, suiteOpts.baseSeed(cmd))
	if err != nil {
		return err
	}
	return printSummaries(cmd.OutOrStdout(), summaries)
}
