package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "portalctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalctl",
		Short: "College portal administration CLI",
		Long: `portalctl runs one-off administration tasks against the portal database:
applying migrations, seeding default data, creating accounts and running maintenance jobs.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (defaults to $CONFIG_PATH or configs/config.yaml)")
	cmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newCreateUserCmd(),
		newJobsCmd(),
	)
	return cmd
}
