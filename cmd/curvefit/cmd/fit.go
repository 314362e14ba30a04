package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/curvefit/internal/fit"
	"github.com/copyleftdev/curvefit/internal/frame"
	"github.com/copyleftdev/curvefit/internal/logging"
)

var (
	limit        int
	outputFormat string
)

var fitCmd = &cobra.Command{
	Use:   "fit <plan.yaml>",
	Short: "Run a fit plan and print the ranked results",
	Long: `Run every fit of a YAML plan locally and print, per column, the
results in ascending cost.

The plan holds the index, the data columns and the fits to try:

  index: [1, 2, 3, 4, 5]
  columns:
    y: [2.1, 3.9, 6.2, 7.8, 10.1]
  fits:
    - family: polynomial
      degrees: [1, 2]
    - family: polynomial
      degrees: [1]
      breakpoints: [[3]]`,
	Args: cobra.ExactArgs(1),
	RunE: runFit,
}

var familiesCmd = &cobra.Command{
	Use:   "families",
	Short: "List the curve families",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range fit.Families() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	fitCmd.Flags().IntVarP(&limit, "limit", "n", -1, "results per column (default: the plan's limit, 0 for all)")
	fitCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format (table, json)")
}

func runFit(cmd *cobra.Command, args []string) error {
	if outputFormat != "table" && outputFormat != "json" {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	plan, err := frame.LoadPlan(args[0])
	if err != nil {
		return err
	}

	opts, err := cfg.FrameOptions()
	if err != nil {
		return err
	}
	opts.Logger = logging.NewZapLogger(logger.WithField("component", "frame"))
	if opts, err = plan.Apply(opts); err != nil {
		return err
	}

	f, err := frame.New(plan.Index, plan.Columns, opts)
	if err != nil {
		return err
	}

	start := time.Now()
	runErr := f.Run(cmd.Context(), plan)
	logger.Info("Plan finished", map[string]interface{}{
		"plan":     plan.Name,
		"columns":  len(plan.Columns),
		"duration": time.Since(start).String(),
	})

	n := plan.Limit
	if cmd.Flags().Changed("limit") {
		n = limit
	}
	rows := f.Summary(n)

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return err
		}
	} else if err := frame.WriteTable(out, rows); err != nil {
		return err
	}
	return runErr
}
