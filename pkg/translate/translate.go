// Package translate localizes generated plans. Translation is fail-open:
// any error yields the original text plus a warning.
package translate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/pario-ai/wanderplan/pkg/audit"
	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/models"
)

// MaxChunk is the largest piece of text sent in one request.
const MaxChunk = 4500

// Result is the outcome of Translate. Warning is set when the original
// text was returned because translation was not possible.
type Result struct {
	Text       string
	Translated bool
	Warning    string
}

// Translator calls the Google translate "gtx" endpoint.
type Translator struct {
	enabled bool
	baseURL string
	client  *http.Client
	audit   audit.Recorder
	logger  *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(t *Translator) { t.client = c } }

// WithAudit records one call record per remote translation.
func WithAudit(r audit.Recorder) Option { return func(t *Translator) { t.audit = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Translator) { t.logger = l } }

// New creates a Translator from cfg.
func New(cfg config.TranslationConfig, opts ...Option) *Translator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	t := &Translator{
		enabled: cfg.Enabled,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Translate returns text in lang. The default language is the identity and
// makes no remote call.
func (t *Translator) Translate(ctx context.Context, text string, lang models.Language) Result {
	if lang == "" || lang.IsDefault() || strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}
	if !t.enabled {
		return Result{Text: text, Warning: fmt.Sprintf("translation to %s is disabled; showing the original text", lang.Name())}
	}

	start := time.Now()
	var out strings.Builder
	var err error
	for i, chunk := range Chunks(text, MaxChunk) {
		var translated string
		translated, err = t.translateChunk(ctx, chunk, lang)
		if err != nil {
			break
		}
		if i > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(translated)
	}
	latency := time.Since(start).Milliseconds()
	reqID := logging.RequestID(ctx)

	if err != nil {
		t.logger.Warn("translation failed, showing original text",
			"request_id", reqID, "service", "google-translate", "language", string(lang),
			"latency_ms", latency, "outcome", "failure", "error", err)
		t.record(ctx, text, "", lang, "failure", err.Error(), latency)
		return Result{
			Text:    text,
			Warning: fmt.Sprintf("translation to %s failed; showing the original text", lang.Name()),
		}
	}

	t.logger.Info("translation call",
		"request_id", reqID, "service", "google-translate", "language", string(lang),
		"latency_ms", latency, "outcome", "success")
	t.record(ctx, text, out.String(), lang, "success", "", latency)
	return Result{Text: out.String(), Translated: true}
}

func (t *Translator) translateChunk(ctx context.Context, chunk string, lang models.Language) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", string(lang))
	q.Set("dt", "t")
	endpoint := t.baseURL + "/translate_a/single?" + q.Encode()

	form := url.Values{"q": {chunk}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate service returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("translate service returned malformed JSON")
	}

	var b strings.Builder
	for _, seg := range gjson.GetBytes(body, "0.#.0").Array() {
		b.WriteString(seg.String())
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("translate service returned no text")
	}
	return b.String(), nil
}

func (t *Translator) record(ctx context.Context, text, translated string, lang models.Language, outcome, errMsg string, latency int64) {
	if t.audit == nil {
		return
	}
	err := t.audit.Log(context.WithoutCancel(ctx), models.CallRecord{
		RequestID: logging.RequestID(ctx),
		Kind:      models.CallTranslation,
		Provider:  "google-translate",
		Model:     string(lang),
		Outcome:   outcome,
		Attempts:  1,
		Error:     errMsg,
		Prompt:    text,
		Response:  translated,
		LatencyMs: latency,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.logger.Warn("audit log failed", "request_id", logging.RequestID(ctx), "error", err)
	}
}

// Chunks splits text on blank lines into pieces of at most max bytes,
// packing consecutive paragraphs together. A paragraph longer than max is
// cut on rune boundaries. Joining the pieces with "\n\n" restores text
// when no paragraph had to be cut.
func Chunks(text string, max int) []string {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, para := range strings.Split(text, "\n\n") {
		for len(para) > max {
			flush()
			cut := max
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			chunks = append(chunks, para[:cut])
			para = para[cut:]
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > max {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}
