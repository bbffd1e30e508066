package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pario-ai/wanderplan/pkg/models"
)

// Gemini generates text with the Gemini API.
type Gemini struct {
	name   string
	client *genai.Client
}

// NewGemini creates a Gemini provider. baseURL overrides the API endpoint
// when set.
func NewGemini(ctx context.Context, name, apiKey, baseURL string) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if name == "" {
		name = "gemini"
	}
	return &Gemini{name: name, client: client}, nil
}

func (g *Gemini) Name() string { return g.name }

// Generate sends system and prompt to model and concatenates the text
// parts of the first candidate.
func (g *Gemini) Generate(ctx context.Context, model, system, prompt string) (Generation, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return Generation{}, g.wrapError(err)
	}

	var gen Generation
	if resp.UsageMetadata != nil {
		gen.Usage = models.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return gen, nil
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	gen.Text = b.String()
	return gen, nil
}

func (g *Gemini) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: g.name, Code: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Provider: g.name, Code: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("%s: %w", g.name, err)
}
