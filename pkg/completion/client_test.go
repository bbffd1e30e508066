package completion

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/wanderplan/pkg/audit"
	"github.com/pario-ai/wanderplan/pkg/budget"
	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/router"
	"github.com/pario-ai/wanderplan/pkg/tracker"
)

type step struct {
	gen   Generation
	err   error
	block bool
}

// scripted returns its steps in order, repeating the last one.
type scripted struct {
	name  string
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Generate(ctx context.Context, _, _, _ string) (Generation, error) {
	s.mu.Lock()
	st := s.steps[min(s.calls, len(s.steps)-1)]
	s.calls++
	s.mu.Unlock()
	if st.block {
		<-ctx.Done()
		return Generation{}, ctx.Err()
	}
	return st.gen, st.err
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func ok(text string) step {
	return step{gen: Generation{Text: text, Usage: models.Usage{PromptTokens: 5, CompletionTokens: 10, TotalTokens: 15}}}
}

func testConfig(providers ...string) *config.Config {
	cfg := config.Default()
	cfg.Providers = nil
	for _, p := range providers {
		cfg.Providers = append(cfg.Providers, config.ProviderConfig{Name: p, Type: "gemini", APIKey: "k"})
	}
	cfg.Completion.Timeout = time.Second
	cfg.Completion.Backoff = config.BackoffConfig{}
	return cfg
}

func newTestClient(cfg *config.Config, provs map[string]Provider, opts ...Option) *Client {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return NewClient(cfg.Completion, router.New(cfg), provs, opts...)
}

func req() models.CompletionRequest {
	return models.CompletionRequest{SystemInstruction: "sys", Prompt: "plan a trip", TemplateVersion: "t1"}
}

func TestCompleteSuccess(t *testing.T) {
	p := &scripted{name: "a", steps: []step{ok("### Transportation\nTrain.")}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": p})

	res := c.Complete(context.Background(), req())

	require.True(t, res.IsSuccess())
	assert.Equal(t, "### Transportation\nTrain.", res.Text)
	assert.Equal(t, "a", res.Provider)
	assert.Equal(t, "gemini-2.0-flash", res.Model)
	assert.Equal(t, 1, res.Attempts)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 15, res.Usage.TotalTokens)
}

func TestCompleteEmptyIsNotRetried(t *testing.T) {
	p := &scripted{name: "a", steps: []step{ok("  \n")}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": p})

	res := c.Complete(context.Background(), req())

	assert.True(t, res.IsEmpty())
	assert.Equal(t, 1, p.Calls())
}

func TestCompleteRetriesTransportErrors(t *testing.T) {
	p := &scripted{name: "a", steps: []step{
		{err: errors.New("connection reset")},
		{err: &StatusError{Provider: "a", Code: 503, Message: "overloaded"}},
		ok("plan"),
	}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": p})

	res := c.Complete(context.Background(), req())

	require.True(t, res.IsSuccess())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, p.Calls())
}

func TestCompleteExhaustedRetriesIsNetworkFailure(t *testing.T) {
	p := &scripted{name: "a", steps: []step{{err: errors.New("timeout")}}}
	cfg := testConfig("a")
	c := newTestClient(cfg, map[string]Provider{"a": p})

	res := c.Complete(context.Background(), req())

	require.True(t, res.IsFailure())
	assert.Equal(t, models.ErrorNetwork, res.Kind)
	assert.Contains(t, res.Message, "timeout")
	assert.Equal(t, cfg.Completion.MaxRetries+1, p.Calls())
}

func TestCompletePerAttemptTimeout(t *testing.T) {
	p := &scripted{name: "a", steps: []step{{block: true}}}
	cfg := testConfig("a")
	cfg.Completion.Timeout = 20 * time.Millisecond
	cfg.Completion.MaxRetries = 1
	c := newTestClient(cfg, map[string]Provider{"a": p})

	res := c.Complete(context.Background(), req())

	require.True(t, res.IsFailure())
	assert.Equal(t, models.ErrorNetwork, res.Kind)
	assert.Contains(t, res.Message, "timeout")
	assert.Equal(t, 2, p.Calls())
}

func TestCompleteServiceErrorIsNotRetried(t *testing.T) {
	p := &scripted{name: "a", steps: []step{{err: &StatusError{Provider: "a", Code: 400, Message: "bad model"}}}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": p})

	res := c.Complete(context.Background(), req())

	require.True(t, res.IsFailure())
	assert.Equal(t, models.ErrorService, res.Kind)
	assert.Equal(t, 1, p.Calls())
}

func TestCompleteFallsBackToNextRoute(t *testing.T) {
	a := &scripted{name: "a", steps: []step{{err: errors.New("dial tcp: refused")}}}
	b := &scripted{name: "b", steps: []step{ok("from b")}}
	cfg := testConfig("a", "b")
	cfg.Completion.MaxRetries = 1
	c := newTestClient(cfg, map[string]Provider{"a": a, "b": b})

	res := c.Complete(context.Background(), req())

	require.True(t, res.IsSuccess())
	assert.Equal(t, "from b", res.Text)
	assert.Equal(t, "b", res.Provider)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, a.Calls())
}

func TestCompleteCanceled(t *testing.T) {
	p := &scripted{name: "a", steps: []step{{block: true}}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": p})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := c.Complete(ctx, req())

	require.True(t, res.IsFailure())
	assert.Equal(t, models.ErrorCanceled, res.Kind)
	assert.Equal(t, 1, p.Calls())
}

func TestCompleteOverBudgetMakesNoCall(t *testing.T) {
	tr, err := tracker.New(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	require.NoError(t, tr.Record(context.Background(), models.UsageRecord{
		Provider: "a", Model: "gemini-2.0-flash", TotalTokens: 100, CreatedAt: time.Now().UTC(),
	}))
	enf := budget.New([]models.BudgetPolicy{{Model: "*", MaxTokens: 50, Period: models.BudgetDaily}}, tr)

	p := &scripted{name: "a", steps: []step{ok("plan")}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": p}, WithBudget(enf), WithTracker(tr))

	res := c.Complete(context.Background(), req())

	require.True(t, res.IsFailure())
	assert.Equal(t, models.ErrorBudget, res.Kind)
	assert.Zero(t, p.Calls())
}

func TestCompleteRecordsUsageAndAudit(t *testing.T) {
	dir := t.TempDir()
	tr, err := tracker.New(filepath.Join(dir, "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	al, err := audit.New(models.AuditConfig{
		Enabled: true, DBPath: filepath.Join(dir, "audit.db"), RetentionDays: 30,
		Include: []string{"prompts", "responses"}, MaxBodySize: 1024,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = al.Close() })

	p := &scripted{name: "a", steps: []step{ok("plan")}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": p}, WithTracker(tr), WithAudit(al))
	ctx := logging.WithRequestID(context.Background(), "req-42")

	res := c.Complete(ctx, req())
	require.True(t, res.IsSuccess())

	total, err := tr.Total(ctx, "", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 15, total)

	recs, err := al.Query(ctx, models.AuditQueryOpts{RequestID: "req-42"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.CallCompletion, recs[0].Kind)
	assert.Equal(t, "success", recs[0].Outcome)
	assert.Equal(t, req().Fingerprint(), recs[0].Fingerprint)
	assert.Equal(t, "plan", recs[0].Response)
}

func TestProbe(t *testing.T) {
	good := &scripted{name: "a", steps: []step{ok("OK")}}
	c := newTestClient(testConfig("a"), map[string]Provider{"a": good})
	require.NoError(t, c.Probe(context.Background()))

	bad := &scripted{name: "a", steps: []step{{err: &StatusError{Provider: "a", Code: 401, Message: "invalid key"}}}}
	c = newTestClient(testConfig("a"), map[string]Provider{"a": bad})
	err := c.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}
