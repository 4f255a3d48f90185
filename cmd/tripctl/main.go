// Package main provides tripctl, a command line client for the planning
// pipeline and its helpers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tripcrew/trip-planner/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tripctl",
		Short:         "Plan trips from the terminal",
		Long:          "tripctl runs the trip planning pipeline and its standalone helpers. Settings are read from the same environment variables as the API server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline progress to stderr")

	cmd.AddCommand(
		newPlanCmd(opts),
		newICSCmd(),
		newDatesCmd(),
		newCalcCmd(),
		newFetchCmd(),
		newSearchCmd(),
		newMigrateCmd(),
	)
	return cmd
}

func (o *rootOptions) logger() (*logger.Logger, error) {
	if !o.verbose {
		return logger.NewNop(), nil
	}
	return logger.NewDevelopment()
}
