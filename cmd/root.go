package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bavix/faros/internal/logging"
	verpkg "github.com/bavix/faros/internal/version"
)

var (
	cfgFile   string //nolint:gochecknoglobals // cobra command flag
	logLevel  string //nolint:gochecknoglobals // cobra command flag
	logFormat string //nolint:gochecknoglobals // cobra command flag
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "faros",
		Short:         "Discovers radio fleet topology and runs fleet-wide operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			base := logging.Base("faros", logLevel, logFormat)
			ctx := base.WithContext(cmd.Context())
			cmd.SetContext(ctx)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (default: /etc/faros/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: json, console")

	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newRebootCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newServeCmd())

	rootCmd.Version = verpkg.GetVersion()
	rootCmd.SetVersionTemplate("faros " + verpkg.GetVersion())

	return rootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func ExecuteContext(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
