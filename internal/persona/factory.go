package persona

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// Backend selects a Responder implementation.
type Backend string

const (
	BackendStatic Backend = "static"
	BackendRemote Backend = "remote"
	BackendLocal  Backend = "local"
)

// Config selects and configures a backend.
type Config struct {
	Backend     Backend `yaml:"backend"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"-"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
	// MaxConcurrent bounds in-flight requests for the local backend.
	MaxConcurrent int64 `yaml:"max_concurrent"`
}

// New builds the responder named by cfg.Backend. An empty backend means static.
func New(cfg Config) (Responder, error) {
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case "", BackendStatic:
		return NewStatic(), nil
	case BackendRemote:
		if cfg.Model == "" {
			return nil, fmt.Errorf("persona: remote backend requires a model")
		}
		return NewRemote(RemoteParams{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxRetries:  cfg.MaxRetries,
		}), nil
	case BackendLocal:
		if cfg.Model == "" {
			return nil, fmt.Errorf("persona: local backend requires a model")
		}
		local, err := NewLocal(LocalParams{
			BaseURL:               cfg.BaseURL,
			Model:                 cfg.Model,
			Temperature:           cfg.Temperature,
			MaxConcurrentRequests: cfg.MaxConcurrent,
		})
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		return nil, fmt.Errorf("persona: unknown backend %q", cfg.Backend)
	}
}

// Swappable forwards to a responder that can be replaced while serving,
// so a config reload can change backends without restarting.
type Swappable struct {
	current atomic.Pointer[Responder]
}

// NewSwappable starts with r.
func NewSwappable(r Responder) *Swappable {
	s := &Swappable{}
	s.Swap(r)
	return s
}

// Swap installs r for subsequent calls.
func (s *Swappable) Swap(r Responder) {
	s.current.Store(&r)
}

func (s *Swappable) Respond(ctx context.Context, p Persona, prompt string) (string, error) {
	return (*s.current.Load()).Respond(ctx, p, prompt)
}
