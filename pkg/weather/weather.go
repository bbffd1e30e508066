// Package weather looks up current conditions at a destination.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"
	"github.com/tidwall/gjson"

	"github.com/pario-ai/wanderplan/pkg/audit"
	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/models"
)

// ZoneFinder resolves coordinates to an IANA time zone name.
type ZoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Client queries the OpenWeatherMap current weather API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	zones   func() (ZoneFinder, error)
	audit   audit.Recorder
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithZoneFinder replaces the default tzf finder.
func WithZoneFinder(f ZoneFinder) Option {
	return func(c *Client) { c.zones = func() (ZoneFinder, error) { return f, nil } }
}

// WithAudit records one call record per lookup.
func WithAudit(r audit.Recorder) Option { return func(c *Client) { c.audit = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a weather client. The time zone finder is loaded on first use.
func New(cfg config.LookupConfig, apiKey string, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		zones: sync.OnceValues(func() (ZoneFinder, error) {
			return tzf.NewDefaultFinder()
		}),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup returns current weather for city.
func (c *Client) Lookup(ctx context.Context, city string) (*models.Weather, error) {
	start := time.Now()
	w, err := c.lookup(ctx, city)
	latency := time.Since(start).Milliseconds()
	reqID := logging.RequestID(ctx)

	outcome, errMsg := "success", ""
	if err != nil {
		outcome, errMsg = "failure", err.Error()
		c.logger.Warn("weather lookup failed",
			"request_id", reqID, "service", "openweathermap", "city", city,
			"latency_ms", latency, "outcome", outcome, "error", err)
	} else {
		c.logger.Info("weather lookup",
			"request_id", reqID, "service", "openweathermap", "city", city,
			"latency_ms", latency, "outcome", outcome)
	}
	if c.audit != nil {
		if aerr := c.audit.Log(context.WithoutCancel(ctx), models.CallRecord{
			RequestID: reqID,
			Kind:      models.CallWeather,
			Provider:  "openweathermap",
			Outcome:   outcome,
			Attempts:  1,
			Error:     errMsg,
			Prompt:    city,
			LatencyMs: latency,
			CreatedAt: time.Now().UTC(),
		}); aerr != nil {
			c.logger.Warn("audit log failed", "request_id", reqID, "error", aerr)
		}
	}
	return w, err
}

func (c *Client) lookup(ctx context.Context, city string) (*models.Weather, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", redactKey(err))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", redactKey(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "message").String()
		return nil, fmt.Errorf("weather service returned status %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("weather service returned malformed JSON")
	}

	r := gjson.ParseBytes(body)
	w := &models.Weather{
		City:         r.Get("name").String(),
		TemperatureC: r.Get("main.temp").Float(),
		Condition:    r.Get("weather.0.description").String(),
		Humidity:     int(r.Get("main.humidity").Int()),
		WindSpeed:    r.Get("wind.speed").Float(),
		Latitude:     r.Get("coord.lat").Float(),
		Longitude:    r.Get("coord.lon").Float(),
	}
	if w.City == "" {
		w.City = city
	}
	if r.Get("coord").Exists() {
		if f, err := c.zones(); err == nil && f != nil {
			w.TimeZone = f.GetTimezoneName(w.Longitude, w.Latitude)
		} else if err != nil {
			c.logger.Warn("time zone finder unavailable", "error", err)
		}
	}
	return w, nil
}

// redactKey masks the appid parameter in the URL carried by a *url.Error.
func redactKey(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		uerr.URL = "<redacted>"
		return err
	}
	q := u.Query()
	if q.Has("appid") {
		q.Set("appid", "REDACTED")
		u.RawQuery = q.Encode()
	}
	uerr.URL = u.String()
	return err
}
