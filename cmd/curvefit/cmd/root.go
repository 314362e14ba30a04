// Package cmd provides the CLI commands for curvefit.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/curvefit/internal/config"
	"github.com/copyleftdev/curvefit/internal/logging"
)

var verbose bool

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "curvefit",
	Short: "Fit analytic curves to tabular data",
	Long: `curvefit fits polynomial, inverse, logarithmic and power-law curves to
data columns, tries several optimizers per fit and keeps the cheapest
results under an overfitting-aware cost.

Examples:
  curvefit fit plan.yaml
  curvefit fit --limit 3 --format json plan.yaml
  curvefit serve`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(familiesCmd)
}

// setup loads the environment configuration and the logger it describes.
// The caller closes the logger.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}
