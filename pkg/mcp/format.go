package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/wanderplan/pkg/models"
)

// formatDocument renders a plan document as plain text for a tool result.
func formatDocument(doc models.PresentationDocument, cached bool) string {
	var b strings.Builder
	b.WriteString(doc.Title + "\n")
	if cached {
		b.WriteString("(served from cache)\n")
	}
	b.WriteString("\n")

	if doc.Weather != nil {
		w := doc.Weather
		fmt.Fprintf(&b, "Weather in %s: %.1f°C, %s, humidity %d%%\n\n",
			w.City, w.TemperatureC, w.Condition, w.Humidity)
	}

	switch doc.Status {
	case models.DocumentOK:
		b.WriteString(strings.TrimSpace(doc.Body) + "\n")
	default:
		b.WriteString(doc.Message + "\n")
		if doc.Diagnostic != "" {
			b.WriteString("Details: " + doc.Diagnostic + "\n")
		}
	}

	if len(doc.Images) > 0 {
		b.WriteString("\nImages:\n")
		for _, u := range doc.Images {
			b.WriteString("  " + u + "\n")
		}
	}
	for _, n := range doc.Notices {
		b.WriteString("\nNote: " + n + "\n")
	}
	return b.String()
}

// formatSummary formats usage summaries as a text table.
func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-25s %8s %10s %10s %10s\n",
		"Provider", "Model", "Requests", "Prompt", "Completion", "Total")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s %-25s %8d %10d %10d %10d\n",
			r.Provider, r.Model, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens)
	}
	return b.String()
}

// formatBudgetStatus formats budget statuses as a text table.
func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-25s %-8s %12s %12s %12s %6s\n",
		"Model", "Period", "Max Tokens", "Used", "Remaining", "Usage%")
	b.WriteString(strings.Repeat("-", 79) + "\n")
	for _, s := range statuses {
		model := s.Policy.Model
		if model == "" {
			model = "*"
		}
		pct := float64(0)
		if s.Policy.MaxTokens > 0 {
			pct = float64(s.Used) / float64(s.Policy.MaxTokens) * 100
		}
		fmt.Fprintf(&b, "%-25s %-8s %12d %12d %12d %5.1f%%\n",
			model, s.Policy.Period, s.Policy.MaxTokens, s.Used, s.Remaining, pct)
	}
	return b.String()
}

// formatCallRecords formats audit records as a text table.
func formatCallRecords(records []models.CallRecord) string {
	if len(records) == 0 {
		return "No audit records found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-12s %-36s %-20s %-8s %8s %8s\n",
		"Time", "Kind", "Request ID", "Model", "Outcome", "Tokens", "Latency")
	b.WriteString(strings.Repeat("-", 118) + "\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%-20s %-12s %-36s %-20s %-8s %8d %6dms\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Kind, r.RequestID, r.Model, r.Outcome, r.TotalTokens, r.LatencyMs)
		if r.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", r.Error)
		}
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, stats.HitRate()*100)
}
