package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start wanderplan as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			opts := []mcp.Option{mcp.WithLogger(a.logger)}
			if a.cache != nil {
				opts = append(opts, mcp.WithCache(a.cache))
			}
			if a.enforcer != nil {
				opts = append(opts, mcp.WithBudget(a.enforcer))
			}
			if a.auditor != nil {
				opts = append(opts, mcp.WithAudit(a.auditor))
			}

			srv := mcp.New(a.pipeline, a.tracker, version, opts...)
			return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}
