package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/config"
)

var version = "dev"

const defaultConfigPath = "wanderplan.yaml"

func main() {
	root := &cobra.Command{
		Use:           "wanderplan",
		Short:         "Wanderplan: generated travel itineraries within a budget",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newPlanCmd(),
		newCheckCmd(),
		newLanguagesCmd(),
		newCacheCmd(),
		newStatsCmd(),
		newBudgetCmd(),
		newAuditCmd(),
		newMCPCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to config file")
}
