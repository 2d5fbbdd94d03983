package main

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/diffevo/internal/benchmark"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List the benchmark problems",
	Long: `Lists the fixed problems and the scalable functions at the default
dimensions. Scalable functions accept any dimension as <name>-<d>d.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDIMS\tBOUNDS\tMINIMUM\tITERATIONS")
		for _, p := range benchmark.Suite(benchmark.DefaultDimensions...) {
			minimum := "unknown"
			if !math.IsNaN(p.MinimumValue) {
				minimum = fmt.Sprintf("%g", p.MinimumValue)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n", p.Name, p.Dimensions(), formatBounds(p), minimum, p.Iterations)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(problemsCmd)
}

func formatBounds(p benchmark.Problem) string {
	parts := make([]string, len(p.Bounds))
	for i, b := range p.Bounds {
		parts[i] = fmt.Sprintf("[%g,%g]", b[0], b[1])
	}
	return strings.Join(parts, " ")
}

func scalableName(base string, d int) string {
	return fmt.Sprintf("%s-%dd", base, d)
}
