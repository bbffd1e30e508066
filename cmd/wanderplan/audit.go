package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/audit"
	"github.com/pario-ai/wanderplan/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the remote call audit log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditShowCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditSearchCmd() *cobra.Command {
	var (
		configPath string
		kind       string
		model      string
		outcome    string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Kind:    models.CallKind(kind),
				Model:   model,
				Outcome: outcome,
				Limit:   limit,
			}
			if since != "" {
				t, err := time.Parse(models.DateLayout, since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			records, err := l.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatCallRecords(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by call kind (completion, translation, weather, images)")
	cmd.Flags().StringVar(&model, "model", "", "filter by model")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (success, empty, failure)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditShowCmd() *cobra.Command {
	var (
		configPath string
		requestID  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show every audited call for one plan request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request-id is required")
			}

			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := l.Query(cmd.Context(), models.AuditQueryOpts{RequestID: requestID})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No entries found for that request ID.")
				return nil
			}

			for i, r := range records {
				if i > 0 {
					fmt.Fprintln(out, strings.Repeat("-", 40))
				}
				fmt.Fprintf(out, "Request ID:    %s\n", r.RequestID)
				fmt.Fprintf(out, "Kind:          %s\n", r.Kind)
				fmt.Fprintf(out, "Provider:      %s\n", r.Provider)
				fmt.Fprintf(out, "Model:         %s\n", r.Model)
				fmt.Fprintf(out, "Fingerprint:   %s\n", r.Fingerprint)
				fmt.Fprintf(out, "Outcome:       %s (%d attempts)\n", r.Outcome, r.Attempts)
				if r.Error != "" {
					fmt.Fprintf(out, "Error:         %s\n", r.Error)
				}
				fmt.Fprintf(out, "Latency:       %dms\n", r.LatencyMs)
				fmt.Fprintf(out, "Tokens:        %d prompt / %d completion / %d total\n",
					r.PromptTokens, r.CompletionTokens, r.TotalTokens)
				fmt.Fprintf(out, "Time:          %s\n", r.CreatedAt.Format(time.RFC3339))
				if r.Prompt != "" {
					fmt.Fprintf(out, "\n--- Prompt ---\n%s\n", r.Prompt)
				}
				if r.Response != "" {
					fmt.Fprintf(out, "\n--- Response ---\n%s\n", r.Response)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show audit log statistics by kind, outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatCallRecords(records []models.CallRecord) string {
	if len(records) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-12s %-20s %-8s %8s %8s %-20s\n",
		"REQUEST ID", "KIND", "MODEL", "OUTCOME", "LATENCY", "TOKENS", "TIME")
	b.WriteString(strings.Repeat("-", 118) + "\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%-36s %-12s %-20s %-8s %6dms %8d %-20s\n",
			r.RequestID, r.Kind, r.Model, r.Outcome,
			r.LatencyMs, r.TotalTokens,
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-8s %-12s %8s\n", "KIND", "OUTCOME", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 43) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-8s %-12s %8d\n", s.Kind, s.Outcome, s.Day, s.Count)
	}
	return b.String()
}
