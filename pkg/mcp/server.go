package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/pario-ai/wanderplan/pkg/budget"
	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/planner"
	"github.com/pario-ai/wanderplan/pkg/tracker"
)

// Planner runs the itinerary pipeline for one trip.
type Planner interface {
	Plan(ctx context.Context, req models.TripRequest) (*planner.Report, error)
}

// CacheStatter provides cache statistics without coupling to a concrete cache implementation.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// AuditSearcher queries recorded remote calls.
type AuditSearcher interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.CallRecord, error)
}

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	planner  Planner
	tracker  tracker.Tracker
	cache    CacheStatter
	enforcer *budget.Enforcer
	auditor  AuditSearcher
	logger   *slog.Logger
	version  string
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithCache exposes cache statistics.
func WithCache(c CacheStatter) Option { return func(s *Server) { s.cache = c } }

// WithBudget exposes budget status.
func WithBudget(e *budget.Enforcer) Option { return func(s *Server) { s.enforcer = e } }

// WithAudit exposes the audit log search.
func WithAudit(a AuditSearcher) Option { return func(s *Server) { s.auditor = a } }

// WithLogger sets the logger used for transport errors.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates a new MCP Server. p and t may be nil, in which case the tools
// depending on them report that they are not configured.
func New(p Planner, t tracker.Tracker, version string, opts ...Option) *Server {
	s := &Server{
		planner: p,
		tracker: t,
		logger:  slog.Default(),
		version: version,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

const instructions = "Use wanderplan_plan to generate a travel itinerary between two cities " +
	"within a budget. The other tools report cache, token usage, budget and audit state."

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, errorResponse(nil, CodeParseError, "parse error"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.writeResponse(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != jsonrpcVersion {
		return errorResponse(req.ID, CodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC))
	}
	if len(req.ID) == 0 {
		// notifications (initialized, cancelled) need no answer
		return nil
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "wanderplan", Version: s.version},
			Capabilities:    Capabilities{Tools: &ToolsCapability{}},
			Instructions:    instructions,
		})
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return resultResponse(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	s.logger.Debug("mcp tool call", "tool", params.Name)
	return resultResponse(req.ID, handler(ctx, s, params.Arguments))
}

func (s *Server) writeResponse(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mcp: marshal response", "error", err)
		return
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.logger.Error("mcp: write response", "error", err)
	}
}
