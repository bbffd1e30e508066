package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/planner"
)

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"wanderplan_plan":         handlePlan,
	"wanderplan_usage":        handleUsage,
	"wanderplan_budget":       handleBudget,
	"wanderplan_cache_stats":  handleCacheStats,
	"wanderplan_audit_search": handleAuditSearch,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "wanderplan_plan",
		Description: "Generate a travel itinerary between two cities within a budget, optionally translated.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"source", "destination", "currency", "budget"},
			"properties": map[string]any{
				"source": map[string]any{
					"type":        "string",
					"description": "Departure city",
				},
				"destination": map[string]any{
					"type":        "string",
					"description": "Destination city",
				},
				"travel_date": map[string]any{
					"type":        "string",
					"description": "Travel date in YYYY-MM-DD format (optional)",
				},
				"currency": map[string]any{
					"type":        "string",
					"description": "ISO 4217 currency code, e.g. USD",
				},
				"budget": map[string]any{
					"type":     "object",
					"required": []string{"min", "max"},
					"properties": map[string]any{
						"min": map[string]any{"type": "number"},
						"max": map[string]any{"type": "number"},
					},
				},
				"preferences": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Travel preferences such as Eco-friendly or Adventure (optional)",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Output language code or name (optional, defaults to English)",
				},
			},
		},
	},
	{
		Name:        "wanderplan_usage",
		Description: "Show aggregated token usage per provider and model.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "wanderplan_budget",
		Description: "Show token budget status (usage vs limits) for all configured policies.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "wanderplan_cache_stats",
		Description: "Show itinerary cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "wanderplan_audit_search",
		Description: "Search the remote call audit log with optional filters.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request_id": map[string]any{
					"type":        "string",
					"description": "Filter by plan request ID (optional)",
				},
				"kind": map[string]any{
					"type":        "string",
					"description": "Filter by call kind: completion, translation, weather or images (optional)",
				},
				"model": map[string]any{
					"type":        "string",
					"description": "Filter by model (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handlePlan(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.planner == nil {
		return textResult("Planning is not configured.")
	}
	var in models.TripInput
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &in); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	req, err := in.Request(models.DefaultLanguage)
	if err == nil {
		var rep *planner.Report
		if rep, err = s.planner.Plan(ctx, req); err == nil {
			text := formatDocument(rep.Document, rep.CacheHit)
			if rep.Document.Status == models.DocumentError {
				return errorResult(text)
			}
			return textResult(text)
		}
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return errorResult("Invalid trip:\n- " + strings.Join(verr.Problems, "\n- "))
	}
	return errorResult("Error planning trip: " + err.Error())
}

func handleUsage(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.tracker == nil {
		return textResult("Usage tracking is not configured.")
	}
	rows, err := s.tracker.Summary(ctx)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.enforcer == nil {
		return textResult("Budget enforcement is not configured.")
	}
	statuses, err := s.enforcer.Status(ctx)
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error())
	}
	return textResult(formatBudgetStatus(statuses))
}

type auditSearchArgs struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	Model     string `json:"model"`
	Since     string `json:"since"`
}

func handleAuditSearch(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	opts := models.AuditQueryOpts{
		RequestID: args.RequestID,
		Kind:      models.CallKind(args.Kind),
		Model:     args.Model,
		Limit:     50,
	}
	if args.Since != "" {
		t, err := time.Parse(models.DateLayout, args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	records, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatCallRecords(records))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}
