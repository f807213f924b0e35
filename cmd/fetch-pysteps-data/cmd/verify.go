package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/oshokin/pysteps-data-fetcher/internal/domain/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
	"github.com/oshokin/pysteps-data-fetcher/internal/service/verify"
)

// recordPath overrides the pystepsrc location for verify.
var recordPath string

// verifyCmd checks that a written record still points at a dataset.
//
//nolint:gochecknoglobals // Cobra commands are package level by convention here.
var verifyCmd = &cobra.Command{
	Use:          "verify",
	Short:        "Check that the pystepsrc points at an installed dataset",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if logLevel != "" {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: unknown log level %q", domain.ErrUsage, logLevel)
			}

			logger.SetLevel(level)
		}

		report, err := verify.Run(cmd.Context(), &verify.Options{
			ConfigPath: configPath,
			RecordPath: recordPath,
		})
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d sources present, %d missing)\n",
			report.RecordPath, report.DataRoot, len(report.Present), len(report.Missing))

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	verifyCmd.Flags().StringVar(&recordPath, "rc", "", "path to the pystepsrc file (default: resolved from settings)")
}
