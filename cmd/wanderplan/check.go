package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/router"
)

func newCheckCmd() *cobra.Command {
	var (
		configPath string
		probe      bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			routes, err := router.New(cfg).Resolve(cfg.Completion.Model)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration OK.")
			for i, r := range routes {
				fmt.Fprintf(out, "  route %d: %s\n", i+1, r)
			}
			if !probe {
				return nil
			}

			ctx := cmd.Context()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.client.Probe(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Generation service reachable (%s).\n", cfg.Completion.Model)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&probe, "probe", false, "also send a probe request to the generation service")
	return cmd
}
