package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		probe      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the itinerary HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx := cmd.Context()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if probe {
				if err := a.client.Probe(ctx); err != nil {
					return fmt.Errorf("startup probe: %w", err)
				}
				a.logger.Info("startup probe succeeded", "model", cfg.Completion.Model)
			}

			a.logger.Info("starting wanderplan", "config", configPath, "cache", cfg.Cache.Backend)
			return server.New(cfg, a.pipeline, a.logger).ListenAndServe(ctx)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	cmd.Flags().BoolVar(&probe, "probe", false, "verify the generation credential before serving")
	return cmd
}
