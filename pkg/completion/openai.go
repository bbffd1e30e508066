package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pario-ai/wanderplan/pkg/models"
)

// OpenAI generates text with the chat completions API of OpenAI or any
// compatible server.
type OpenAI struct {
	name   string
	client openai.Client
}

// NewOpenAI creates an OpenAI provider. The SDK's own retries are disabled;
// Client applies the configured retry policy.
func NewOpenAI(name, apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if name == "" {
		name = "openai"
	}
	return &OpenAI{name: name, client: openai.NewClient(opts...)}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, model, system, prompt string) (Generation, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Generation{}, &StatusError{Provider: o.name, Code: apiErr.StatusCode, Message: apiErr.Message}
		}
		return Generation{}, fmt.Errorf("%s: %w", o.name, err)
	}

	gen := Generation{
		Usage: models.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) > 0 {
		gen.Text = resp.Choices[0].Message.Content
	}
	return gen, nil
}
