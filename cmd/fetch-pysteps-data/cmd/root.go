package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
	"github.com/oshokin/pysteps-data-fetcher/internal/service/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/version"
)

var (
	// configPath to the optional settings YAML file.
	configPath string

	// logLevel overrides the level from settings.
	logLevel string

	// rootCmd downloads the dataset and writes the configuration record.
	rootCmd = &cobra.Command{
		Use:   version.Name + " DEST_DIR",
		Short: "Install the pysteps test data and create a pystepsrc pointing to it",
		Long: "Download the pysteps reference dataset into DEST_DIR, replacing anything already there, " +
			"then write a pystepsrc configuration file whose data sources point into DEST_DIR.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			options := &bootstrap.Options{
				ConfigPath:  configPath,
				Destination: args[0],
				LogLevel:    logLevel,
			}

			return bootstrap.Run(ctx, options)
		},
	}
)

// Execute runs the CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(verifyCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to settings file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
