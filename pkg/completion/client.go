package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pario-ai/wanderplan/pkg/audit"
	"github.com/pario-ai/wanderplan/pkg/budget"
	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/router"
	"github.com/pario-ai/wanderplan/pkg/tracker"
)

// Client runs completion requests over the router's fallback chain with
// per-attempt timeouts, retries with backoff, budget checks, usage tracking
// and auditing.
type Client struct {
	cfg       config.CompletionConfig
	router    *router.Router
	providers map[string]Provider
	backoff   Backoff

	budget  *budget.Enforcer
	tracker tracker.Tracker
	audit   audit.Recorder
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBudget gates every route on the enforcer.
func WithBudget(e *budget.Enforcer) Option { return func(c *Client) { c.budget = e } }

// WithTracker records token usage of successful calls.
func WithTracker(t tracker.Tracker) Option { return func(c *Client) { c.tracker = t } }

// WithAudit writes one call record per Complete.
func WithAudit(r audit.Recorder) Option { return func(c *Client) { c.audit = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient creates a Client. providers is keyed by provider name as
// configured for the router.
func NewClient(cfg config.CompletionConfig, r *router.Router, providers map[string]Provider, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg,
		router:    r,
		providers: providers,
		backoff:   NewBackoff(cfg.Backoff),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Complete generates text for req. It never returns an error: every
// outcome is a Success, Empty or Failure result.
func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) models.CompletionResult {
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	routes, err := c.router.Resolve(model)
	if err != nil {
		res := models.Failure(models.ErrorConfiguration, err.Error())
		c.finish(ctx, req, res, start)
		return res
	}

	var (
		last       models.CompletionResult
		attempts   int
		tried      bool
		overBudget error
	)
	for _, route := range routes {
		p, ok := c.providers[route.Provider.Name]
		if !ok {
			last = models.Failure(models.ErrorConfiguration, fmt.Sprintf("provider %q is not initialized", route.Provider.Name))
			continue
		}
		if c.budget != nil {
			if err := c.budget.Check(ctx, route.Model); err != nil {
				if errors.Is(err, budget.ErrBudgetExceeded) {
					overBudget = err
					c.logger.Warn("route over budget",
						"request_id", logging.RequestID(ctx), "provider", p.Name(), "model", route.Model, "error", err)
					continue
				}
				c.logger.Warn("budget check failed", "request_id", logging.RequestID(ctx), "error", err)
			}
		}

		tried = true
		res, n, final := c.tryRoute(ctx, p, route.Model, req)
		attempts += n
		res.Provider = p.Name()
		res.Model = route.Model
		res.Attempts = attempts
		if final {
			c.finish(ctx, req, res, start)
			return res
		}
		last = res
	}

	var res models.CompletionResult
	switch {
	case !tried && overBudget != nil:
		res = models.Failure(models.ErrorBudget, overBudget.Error())
	case last.IsFailure():
		res = last
	default:
		res = models.Failure(models.ErrorNetwork, "no route available for model "+model)
	}
	res.Attempts = attempts
	c.finish(ctx, req, res, start)
	return res
}

// tryRoute runs up to 1+MaxRetries attempts against one provider. final is
// false when the caller should fall back to the next route.
func (c *Client) tryRoute(ctx context.Context, p Provider, model string, req models.CompletionRequest) (models.CompletionResult, int, bool) {
	reqID := logging.RequestID(ctx)
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, c.backoff.Delay(attempt)); err != nil {
				return models.Failure(models.ErrorCanceled, err.Error()), attempts, true
			}
		}
		attempts++

		actx := ctx
		cancel := func() {}
		if c.cfg.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		}
		t0 := time.Now()
		gen, err := p.Generate(actx, model, req.SystemInstruction, req.Prompt)
		cancel()
		latency := time.Since(t0).Milliseconds()

		if err == nil {
			if strings.TrimSpace(gen.Text) == "" {
				c.logger.Warn("completion returned no content",
					"request_id", reqID, "provider", p.Name(), "model", model,
					"attempt", attempts, "latency_ms", latency, "outcome", models.StatusEmpty)
				return models.Empty(), attempts, true
			}
			c.logger.Info("completion call",
				"request_id", reqID, "provider", p.Name(), "model", model,
				"attempt", attempts, "latency_ms", latency, "outcome", models.StatusSuccess,
				"total_tokens", gen.Usage.TotalTokens)
			c.recordUsage(ctx, p.Name(), model, gen.Usage)
			res := models.Success(gen.Text)
			usage := gen.Usage
			res.Usage = &usage
			return res, attempts, true
		}

		if ctx.Err() != nil {
			return models.Failure(models.ErrorCanceled, ctx.Err().Error()), attempts, true
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("timeout after %s: %w", c.cfg.Timeout, err)
		}

		if !IsRetryable(err) {
			c.logger.Warn("completion call",
				"request_id", reqID, "provider", p.Name(), "model", model,
				"attempt", attempts, "latency_ms", latency, "outcome", "service_error", "error", err)
			return models.Failure(models.ErrorService, lastErr.Error()), attempts, false
		}
		c.logger.Warn("completion call",
			"request_id", reqID, "provider", p.Name(), "model", model,
			"attempt", attempts, "latency_ms", latency, "outcome", "retryable_error", "error", lastErr)
	}

	return models.Failure(models.ErrorNetwork,
		fmt.Sprintf("%d attempts failed: %v", attempts, lastErr)), attempts, false
}

func (c *Client) recordUsage(ctx context.Context, provider, model string, u models.Usage) {
	if c.tracker == nil {
		return
	}
	err := c.tracker.Record(ctx, models.UsageRecord{
		RequestID:        logging.RequestID(ctx),
		Provider:         provider,
		Model:            model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CreatedAt:        time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn("usage record failed", "request_id", logging.RequestID(ctx), "error", err)
	}
}

func (c *Client) finish(ctx context.Context, req models.CompletionRequest, res models.CompletionResult, start time.Time) {
	if c.audit == nil {
		return
	}
	rec := models.CallRecord{
		RequestID:   logging.RequestID(ctx),
		Kind:        models.CallCompletion,
		Provider:    res.Provider,
		Model:       res.Model,
		Fingerprint: req.Fingerprint(),
		Outcome:     string(res.Status),
		Attempts:    res.Attempts,
		Error:       res.Message,
		Prompt:      req.Prompt,
		Response:    res.Text,
		LatencyMs:   time.Since(start).Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if res.Usage != nil {
		rec.PromptTokens = res.Usage.PromptTokens
		rec.CompletionTokens = res.Usage.CompletionTokens
		rec.TotalTokens = res.Usage.TotalTokens
	}
	if err := c.audit.Log(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("audit log failed", "request_id", rec.RequestID, "error", err)
	}
}

// Probe sends a minimal request through the first route of the default
// model to verify the credential before serving traffic.
func (c *Client) Probe(ctx context.Context) error {
	routes, err := c.router.Resolve(c.cfg.Model)
	if err != nil {
		return err
	}
	route := routes[0]
	p, ok := c.providers[route.Provider.Name]
	if !ok {
		return fmt.Errorf("provider %q is not initialized", route.Provider.Name)
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if _, err := p.Generate(ctx, route.Model, "", "Reply with OK."); err != nil {
		return fmt.Errorf("probe %s/%s: %w", p.Name(), route.Model, err)
	}
	return nil
}
