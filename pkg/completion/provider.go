// Package completion calls hosted generation models and normalizes every
// outcome into a models.CompletionResult.
package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/models"
)

// Generation is the raw output of one successful provider call.
type Generation struct {
	Text  string
	Usage models.Usage
}

// Provider is a generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model, system, prompt string) (Generation, error)
}

// StatusError is a non-success reply from a generation service.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Message)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}

// NewProvider builds the provider described by p.
func NewProvider(ctx context.Context, p config.ProviderConfig, apiKey string) (Provider, error) {
	switch strings.ToLower(p.Type) {
	case "", "gemini":
		return NewGemini(ctx, p.Name, apiKey, p.URL)
	case "openai":
		return NewOpenAI(p.Name, apiKey, p.URL), nil
	default:
		return nil, fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
	}
}

// Providers builds every configured provider keyed by name.
func Providers(ctx context.Context, cfg *config.Config) (map[string]Provider, error) {
	out := make(map[string]Provider)
	for _, p := range cfg.EffectiveProviders() {
		prov, err := NewProvider(ctx, p, cfg.ProviderKey(p))
		if err != nil {
			return nil, err
		}
		out[p.Name] = prov
	}
	return out, nil
}
