package main

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/diffevo/internal/benchmark"
	"github.com/copyleftdev/diffevo/internal/optimization/evolution"
)

var (
	runOpts     runFlags
	problemName string
	dimensions  int
)

var runCmd = &cobra.Command{
	Use:   "run <classic|dg>",
	Short: "Run one problem over several attempts",
	Long: `Runs the chosen engine on a single problem. Each attempt is seeded from
the base seed and writes logs/<problem>[.dg].<attempt>.csv.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: evolution.Strategies(),
	RunE:      runProblem,
}

func init() {
	runOpts.register(runCmd.Flags())
	runCmd.Flags().StringVar(&problemName, "problem", "", "Problem name (see dectl problems)")
	runCmd.Flags().IntVar(&dimensions, "dims", 0, "Dimension for scalable problems given by base name")

	_ = runCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(runCmd)
}

func runProblem(cmd *cobra.Command, args []string) error {
	p, err := benchmark.Lookup(problemName)
	if err != nil && dimensions > 0 {
		p, err = benchmark.Lookup(scalableName(problemName, dimensions))
	}
	if err != nil {
		return err
	}

	st, err := runOpts.openStore(cmd.Context())
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	logger.Info("Starting run", map[string]interface{}{
		"strategy": args[0],
		"problem":  p.Name,
		"attempts": runOpts.attempts,
	})

	summaries, err := runOpts.runner(cmd, args[0], st).Run(cmd.Context(), p, runOpts.baseSeed(cmd))
	if err != nil {
		return err
	}
	return printSummaries(cmd.OutOrStdout(), summaries)
}
