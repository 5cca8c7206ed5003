package persona

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// LocalParams configures an Ollama server.
type LocalParams struct {
	BaseURL               string
	Model                 string
	Temperature           float64
	MaxConcurrentRequests int64
	HTTPClient            *http.Client
}

// Local asks a model served by Ollama. At most MaxConcurrentRequests chats
// run at once; further callers wait or give up with their context.
type Local struct {
	client      *api.Client
	model       string
	temperature float64
	reqLock     *semaphore.Weighted
}

// NewLocal builds a Local responder.
func NewLocal(params LocalParams) (*Local, error) {
	var u *url.URL
	if params.BaseURL != "" {
		parsed, err := url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
		u = parsed
	} else {
		u = &url.URL{Scheme: "http", Host: "127.0.0.1:11434"}
	}

	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limit := params.MaxConcurrentRequests
	if limit <= 0 {
		limit = 1
	}

	return &Local{
		client:      api.NewClient(u, httpClient),
		model:       params.Model,
		temperature: params.Temperature,
		reqLock:     semaphore.NewWeighted(limit),
	}, nil
}

func (l *Local) Respond(ctx context.Context, p Persona, prompt string) (string, error) {
	if err := validate(p, prompt); err != nil {
		return "", err
	}
	if err := l.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.reqLock.Release(1)

	stream := false
	req := &api.ChatRequest{
		Model: l.model,
		Messages: []api.Message{
			{Role: "system", Content: SystemPrompt(p)},
			{Role: "user", Content: prompt},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": l.temperature},
	}

	var reply strings.Builder
	if err := l.client.Chat(ctx, req, func(cr api.ChatResponse) error {
		reply.WriteString(cr.Message.Content)
		return nil
	}); err != nil {
		return "", modelFailure(err, "local")
	}
	return reply.String(), nil
}
