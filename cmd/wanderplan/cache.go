package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/cache"
	"github.com/pario-ai/wanderplan/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the persistent itinerary cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), configPath, func(s cache.Store) error {
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\n", stats.Entries)
				return nil
			})
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), configPath, func(s cache.Store) error {
				if err := s.Clear(cmd.Context(), expiredOnly); err != nil {
					return err
				}
				if expiredOnly {
					fmt.Fprintln(cmd.OutOrStdout(), "Expired cache entries cleared.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
				}
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

// withStore opens the configured persistent cache tier and runs fn on it.
func withStore(ctx context.Context, configPath string, fn func(cache.Store) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		fmt.Println("Caching is disabled.")
		return nil
	}
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return memoryBackendError(cfg)
	}
	defer func() { _ = closer.Close() }()
	return fn(store)
}

func memoryBackendError(cfg *config.Config) error {
	return fmt.Errorf("cache backend %q lives inside the server process; query GET /v1/cache/stats on %s instead",
		cfg.Cache.Backend, cfg.Listen)
}
