package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/wanderplan/pkg/cache"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/translate"
)

type stubCompleter struct {
	calls  atomic.Int64
	result models.CompletionResult
	gate   chan struct{}
}

func (s *stubCompleter) Complete(ctx context.Context, _ models.CompletionRequest) models.CompletionResult {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.result
}

type stubTranslator struct {
	calls atomic.Int64
	fail  bool
}

func (s *stubTranslator) Translate(_ context.Context, text string, lang models.Language) translate.Result {
	if lang.IsDefault() {
		return translate.Result{Text: text}
	}
	s.calls.Add(1)
	if s.fail {
		return translate.Result{Text: text, Warning: "translation failed"}
	}
	return translate.Result{Text: "[" + string(lang) + "] " + text, Translated: true}
}

type stubWeather struct{ err error }

func (s stubWeather) Lookup(_ context.Context, city string) (*models.Weather, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Weather{City: city, Condition: "clear sky", TemperatureC: 21}, nil
}

type stubImages struct{ err error }

func (s stubImages) Search(_ context.Context, city string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"https://img/" + city}, nil
}

func newYorkToParis() models.TripRequest {
	return models.TripRequest{
		Source:      "New York",
		Destination: "Paris",
		TravelDate:  time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC),
		Currency:    "USD",
		Budget:      models.Budget{Min: 500, Max: 2000},
		Language:    models.English,
	}
}

func newPipeline(c Completer, opts ...Option) *Pipeline {
	opts = append([]Option{
		WithCache(cache.New(time.Hour, 100)),
		WithModel("gemini-2.0-flash"),
		WithLogger(logging.Discard()),
	}, opts...)
	return New(c, opts...)
}

func TestPlanSuccess(t *testing.T) {
	text := "### Transportation\nFly direct from JFK to CDG."
	stub := &stubCompleter{result: models.Success(text)}
	p := newPipeline(stub)

	rep, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)

	assert.Equal(t, models.DocumentOK, rep.Document.Status)
	assert.Equal(t, text, rep.Document.Body)
	require.NotNil(t, rep.Document.Download)
	assert.Equal(t, "Travel_Plan_New York_to_Paris.txt", rep.Document.Download.Filename)
	assert.NotEmpty(t, rep.RequestID)
	assert.Equal(t, []State{
		StateIdle, StateValidating, StateSubmitted, StateCacheLookup,
		StateCacheMiss, StateCalling, StateSuccess, StateTranslating,
		StateFormatting, StateDone,
	}, rep.States)
}

func TestPlanFailureIsNotCached(t *testing.T) {
	stub := &stubCompleter{result: models.Failure(models.ErrorNetwork, "timeout")}
	p := newPipeline(stub)

	rep, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)
	assert.Equal(t, models.DocumentError, rep.Document.Status)
	assert.NotEmpty(t, rep.Document.Message)
	assert.Equal(t, "network: timeout", rep.Document.Diagnostic)
	assert.Nil(t, rep.Document.Download)
	assert.Contains(t, rep.States, StateFailure)
	assert.NotContains(t, rep.States, StateTranslating)

	_, err = p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)
	assert.EqualValues(t, 2, stub.calls.Load())

	stats, err := p.Cache().Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestPlanInvalidRequestMakesNoCall(t *testing.T) {
	stub := &stubCompleter{result: models.Success("plan")}
	p := newPipeline(stub)
	req := newYorkToParis()
	req.Destination = ""

	rep, err := p.Plan(context.Background(), req)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, stub.calls.Load())
	assert.Equal(t, models.DocumentWarning, rep.Document.Status)
	assert.Equal(t, []State{StateIdle, StateValidating, StateInvalid}, rep.States)
}

func TestPlanRepeatedRequestHitsCache(t *testing.T) {
	stub := &stubCompleter{result: models.Success("### Food\nCrepes.")}
	p := newPipeline(stub)

	first, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)

	assert.EqualValues(t, 1, stub.calls.Load())
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Document.Body, second.Document.Body)
	assert.Equal(t, []State{
		StateIdle, StateValidating, StateSubmitted, StateCacheLookup,
		StateCacheHit, StateFormatting, StateDone,
	}, second.States)
}

func TestPlanConcurrentIdenticalRequestsCallOnce(t *testing.T) {
	stub := &stubCompleter{result: models.Success("plan"), gate: make(chan struct{})}
	p := newPipeline(stub)

	const n = 8
	var wg sync.WaitGroup
	reports := make([]*Report, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], _ = p.Plan(context.Background(), newYorkToParis())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(stub.gate)
	wg.Wait()

	assert.EqualValues(t, 1, stub.calls.Load())
	for _, r := range reports {
		require.NotNil(t, r)
		assert.Equal(t, "plan", r.Document.Body)
	}
}

func TestPlanWithoutCacheAlwaysCalls(t *testing.T) {
	stub := &stubCompleter{result: models.Success("plan")}
	p := New(stub, WithLogger(logging.Discard()))

	_, _ = p.Plan(context.Background(), newYorkToParis())
	_, _ = p.Plan(context.Background(), newYorkToParis())
	assert.EqualValues(t, 2, stub.calls.Load())
}

func TestPlanEmpty(t *testing.T) {
	p := newPipeline(&stubCompleter{result: models.Empty()})

	rep, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)
	assert.Equal(t, models.DocumentWarning, rep.Document.Status)
	assert.Nil(t, rep.Document.Download)
	assert.Contains(t, rep.States, StateEmpty)
}

func TestPlanTranslates(t *testing.T) {
	tr := &stubTranslator{}
	stub := &stubCompleter{result: models.Success("Hello")}
	p := newPipeline(stub, WithTranslator(tr))
	req := newYorkToParis()
	req.Language = models.French

	first, err := p.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "[fr] Hello", first.Document.Body)

	second, err := p.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "[fr] Hello", second.Document.Body)
	assert.Contains(t, second.States, StateTranslating)
	assert.EqualValues(t, 1, stub.calls.Load())

	english, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)
	assert.False(t, english.CacheHit, "language is part of the cache key")
	assert.Equal(t, "Hello", english.Document.Body)
}

func TestPlanTranslationFailsOpen(t *testing.T) {
	p := newPipeline(&stubCompleter{result: models.Success("Hello")}, WithTranslator(&stubTranslator{fail: true}))
	req := newYorkToParis()
	req.Language = models.Telugu

	rep, err := p.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentOK, rep.Document.Status)
	assert.Equal(t, "Hello", rep.Document.Body)
	assert.Contains(t, rep.Document.Notices, "translation failed")
}

func TestPlanGathersLookups(t *testing.T) {
	p := newPipeline(&stubCompleter{result: models.Success("plan")},
		WithWeather(stubWeather{}), WithImages(stubImages{}))

	rep, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)
	require.NotNil(t, rep.Document.Weather)
	assert.Equal(t, "Paris", rep.Document.Weather.City)
	assert.Equal(t, []string{"https://img/Paris"}, rep.Document.Images)
	assert.Empty(t, rep.Document.Notices)
}

func TestPlanLookupFailuresAreNotices(t *testing.T) {
	p := newPipeline(&stubCompleter{result: models.Success("plan")},
		WithWeather(stubWeather{err: errors.New("401")}), WithImages(stubImages{err: errors.New("down")}))

	rep, err := p.Plan(context.Background(), newYorkToParis())
	require.NoError(t, err)
	assert.Equal(t, models.DocumentOK, rep.Document.Status)
	assert.Nil(t, rep.Document.Weather)
	assert.Len(t, rep.Document.Notices, 2)
}
