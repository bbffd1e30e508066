// Package planner runs the end-to-end itinerary pipeline: validate, build
// the prompt, consult the cache, call the generation service alongside the
// weather and image lookups, translate and format.
package planner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/wanderplan/pkg/cache"
	"github.com/pario-ai/wanderplan/pkg/format"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/prompt"
	"github.com/pario-ai/wanderplan/pkg/translate"
)

// Completer generates plan text. *completion.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) models.CompletionResult
}

// Translator localizes text. *translate.Translator implements it.
type Translator interface {
	Translate(ctx context.Context, text string, lang models.Language) translate.Result
}

// WeatherLookup fetches current conditions. *weather.Client implements it.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) (*models.Weather, error)
}

// ImageSearch fetches destination photos. *images.Client implements it.
type ImageSearch interface {
	Search(ctx context.Context, city string) ([]string, error)
}

// State is a step of the request state machine.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateInvalid     State = "invalid"
	StateSubmitted   State = "submitted"
	StateCacheLookup State = "cache_lookup"
	StateCacheHit    State = "cache_hit"
	StateCacheMiss   State = "cache_miss"
	StateCalling     State = "calling"
	StateSuccess     State = "success"
	StateEmpty       State = "empty"
	StateFailure     State = "failure"
	StateTranslating State = "translating"
	StateFormatting  State = "formatting"
	StateDone        State = "done"
)

// Report is the outcome of one Plan call.
type Report struct {
	RequestID string                      `json:"request_id"`
	States    []State                     `json:"states"`
	CacheHit  bool                        `json:"cache_hit"`
	Result    models.ResultStatus         `json:"result,omitempty"`
	Document  models.PresentationDocument `json:"document"`
}

func (r *Report) enter(s State) { r.States = append(r.States, s) }

// Pipeline is safe for concurrent use.
type Pipeline struct {
	completer  Completer
	cache      *cache.ResultCache
	translator Translator
	weather    WeatherLookup
	images     ImageSearch
	model      string
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache memoizes completions. Without it every request calls the
// completer.
func WithCache(c *cache.ResultCache) Option { return func(p *Pipeline) { p.cache = c } }

func WithTranslator(t Translator) Option { return func(p *Pipeline) { p.translator = t } }

func WithWeather(w WeatherLookup) Option { return func(p *Pipeline) { p.weather = w } }

func WithImages(i ImageSearch) Option { return func(p *Pipeline) { p.images = i } }

// WithModel sets the model named in completion requests.
func WithModel(m string) Option { return func(p *Pipeline) { p.model = m } }

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New creates a Pipeline around c.
func New(c Completer, opts ...Option) *Pipeline {
	p := &Pipeline{completer: c, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Cache returns the pipeline's result cache, which may be nil.
func (p *Pipeline) Cache() *cache.ResultCache { return p.cache }

// Plan runs req through the pipeline. The only error is a
// *models.ValidationError, returned together with a warning document and
// before any remote call.
func (p *Pipeline) Plan(ctx context.Context, req models.TripRequest) (*Report, error) {
	start := time.Now()
	rep := &Report{RequestID: uuid.NewString(), States: []State{StateIdle}}
	ctx = logging.WithRequestID(ctx, rep.RequestID)

	rep.enter(StateValidating)
	if err := req.Validate(); err != nil {
		rep.enter(StateInvalid)
		rep.Document = models.PresentationDocument{
			Status:  models.DocumentWarning,
			Title:   format.Title(req),
			Message: err.Error(),
		}
		p.logger.Info("plan request rejected", "request_id", rep.RequestID, "error", err)
		return rep, err
	}
	req = req.Normalized()
	rep.enter(StateSubmitted)

	creq := prompt.Request(req, p.model)
	rep.enter(StateCacheLookup)

	var (
		result models.CompletionResult
		hit    bool
		extras models.Extras
		mu     sync.Mutex
		g      errgroup.Group
	)
	g.Go(func() error {
		result, hit = p.cache.GetOrCompute(ctx, creq.Fingerprint(), func(cctx context.Context) models.CompletionResult {
			return p.completer.Complete(cctx, creq)
		})
		return nil
	})
	if p.weather != nil {
		g.Go(func() error {
			w, err := p.weather.Lookup(ctx, req.Destination)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				extras.Notices = append(extras.Notices, "Weather for "+req.Destination+" is unavailable right now.")
				return nil
			}
			extras.Weather = w
			return nil
		})
	}
	if p.images != nil {
		g.Go(func() error {
			urls, err := p.images.Search(ctx, req.Destination)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				extras.Notices = append(extras.Notices, "Photos of "+req.Destination+" are unavailable right now.")
				return nil
			}
			extras.Images = urls
			return nil
		})
	}
	_ = g.Wait()

	rep.CacheHit = hit
	rep.Result = result.Status
	if hit {
		rep.enter(StateCacheHit)
	} else {
		rep.enter(StateCacheMiss)
		rep.enter(StateCalling)
		switch result.Status {
		case models.StatusSuccess:
			rep.enter(StateSuccess)
		case models.StatusEmpty:
			rep.enter(StateEmpty)
		default:
			rep.enter(StateFailure)
		}
	}

	lang := req.Language
	if result.IsSuccess() && (!hit || !lang.IsDefault()) {
		rep.enter(StateTranslating)
		if p.translator != nil {
			tr := p.translator.Translate(ctx, result.Text, lang)
			if tr.Warning != "" {
				extras.Notices = append(extras.Notices, tr.Warning)
			}
			translated := result
			translated.Text = tr.Text
			result = translated
		}
	}

	rep.enter(StateFormatting)
	doc := format.Format(req, result, extras)
	if !result.IsSuccess() && p.translator != nil && !lang.IsDefault() {
		if tr := p.translator.Translate(ctx, doc.Message, lang); tr.Translated {
			doc.Message = tr.Text
		}
	}
	rep.Document = doc
	rep.enter(StateDone)

	p.logger.Info("plan request",
		"request_id", rep.RequestID,
		"source", req.Source, "destination", req.Destination, "language", string(lang),
		"result", result.Status, "cache_hit", hit,
		"latency_ms", time.Since(start).Milliseconds())
	return rep, nil
}
