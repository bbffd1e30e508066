// Package router expands a requested model name into the ordered chain of
// provider and model pairs the completion client falls back through.
package router

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/pario-ai/wanderplan/pkg/config"
)

// ErrNoProviders is returned when nothing is configured to route to.
var ErrNoProviders = errors.New("no providers configured")

// Route is one provider and model to try.
type Route struct {
	Provider config.ProviderConfig
	Model    string
}

func (r Route) String() string { return r.Provider.Name + "/" + r.Model }

// Router resolves model names and aliases to fallback chains.
type Router struct {
	providers []config.ProviderConfig
	byName    map[string]config.ProviderConfig
	aliases   map[string][]config.RouteTarget
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	providers := cfg.EffectiveProviders()
	r := &Router{
		providers: providers,
		byName:    lo.KeyBy(providers, func(p config.ProviderConfig) string { return p.Name }),
		aliases:   make(map[string][]config.RouteTarget, len(cfg.Router.Routes)),
	}
	for _, rc := range cfg.Router.Routes {
		if _, dup := r.aliases[rc.Model]; !dup {
			r.aliases[rc.Model] = rc.Targets
		}
	}
	return r
}

// Resolve returns the chain for model. An alias expands to its targets in
// order, skipping unknown providers and repeated pairs. Any other name is
// tried on every provider in configuration order.
func (r *Router) Resolve(model string) ([]Route, error) {
	if len(r.providers) == 0 {
		return nil, ErrNoProviders
	}

	targets, ok := r.aliases[model]
	if !ok {
		return lo.Map(r.providers, func(p config.ProviderConfig, _ int) Route {
			m := model
			if p.Model != "" {
				m = p.Model
			}
			return Route{Provider: p, Model: m}
		}), nil
	}

	var routes []Route
	for _, t := range targets {
		p, known := r.byName[t.Provider]
		if !known {
			continue
		}
		m := t.Model
		if m == "" {
			m = model
		}
		routes = append(routes, Route{Provider: p, Model: m})
	}
	routes = lo.UniqBy(routes, Route.String)
	if len(routes) == 0 {
		return nil, fmt.Errorf("route %q: no configured provider among its targets", model)
	}
	return routes, nil
}
