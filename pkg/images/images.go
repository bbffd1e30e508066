// Package images finds destination photos on Unsplash.
package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/pario-ai/wanderplan/pkg/audit"
	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/models"
)

// MaxImages is the most URLs returned by Search.
const MaxImages = 3

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	audit   audit.Recorder
	logger  *slog.Logger
}

type Option func(*Client)

func WithAudit(r audit.Recorder) Option { return func(c *Client) { c.audit = r } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

func New(cfg config.LookupConfig, apiKey string, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search returns up to MaxImages distinct photo URLs for city.
func (c *Client) Search(ctx context.Context, city string) ([]string, error) {
	start := time.Now()
	urls, err := c.search(ctx, city)
	latency := time.Since(start).Milliseconds()
	reqID := logging.RequestID(ctx)

	outcome, errMsg := "success", ""
	if err != nil {
		outcome, errMsg = "failure", err.Error()
		c.logger.Warn("image search failed",
			"request_id", reqID, "service", "unsplash", "city", city,
			"latency_ms", latency, "outcome", outcome, "error", err)
	} else {
		c.logger.Info("image search",
			"request_id", reqID, "service", "unsplash", "city", city,
			"latency_ms", latency, "outcome", outcome, "count", len(urls))
	}
	if c.audit != nil {
		if aerr := c.audit.Log(context.WithoutCancel(ctx), models.CallRecord{
			RequestID: reqID,
			Kind:      models.CallImages,
			Provider:  "unsplash",
			Outcome:   outcome,
			Attempts:  1,
			Error:     errMsg,
			Prompt:    city,
			Response:  strings.Join(urls, "\n"),
			LatencyMs: latency,
			CreatedAt: time.Now().UTC(),
		}); aerr != nil {
			c.logger.Warn("audit log failed", "request_id", reqID, "error", aerr)
		}
	}
	return urls, err
}

func (c *Client) search(ctx context.Context, city string) ([]string, error) {
	q := url.Values{}
	q.Set("query", city)
	q.Set("per_page", strconv.Itoa(MaxImages))
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.apiKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image service returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("image service returned malformed JSON")
	}

	urls := lo.Uniq(lo.Compact(lo.Map(gjson.GetBytes(body, "results.#.urls.regular").Array(),
		func(r gjson.Result, _ int) string { return r.String() })))
	if len(urls) > MaxImages {
		urls = urls[:MaxImages]
	}
	return urls, nil
}
