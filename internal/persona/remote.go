package persona

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// RemoteParams configures an OpenAI-compatible chat endpoint.
type RemoteParams struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
}

// Remote asks a hosted chat-completion model.
type Remote struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewRemote builds a Remote responder. BaseURL may be empty for the public API.
func NewRemote(params RemoteParams) *Remote {
	opts := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
		option.WithMaxRetries(params.MaxRetries),
	}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}

	return &Remote{
		client:      openai.NewClient(opts...),
		model:       params.Model,
		temperature: params.Temperature,
	}
}

func (r *Remote) Respond(ctx context.Context, p Persona, prompt string) (string, error) {
	if err := validate(p, prompt); err != nil {
		return "", err
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(p)),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(r.temperature),
	}

	resp, err := r.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", modelFailure(err, "remote")
	}
	if len(resp.Choices) == 0 {
		return "", modelFailure(fmt.Errorf("model %s returned no choices", r.model), "remote")
	}
	return resp.Choices[0].Message.Content, nil
}
