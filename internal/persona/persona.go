// Package persona answers free-text prompts in the voice of a fixed set of
// thinking partners. Backends range from canned strings to hosted and local
// language models; callers only see the Responder interface.
package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// Persona names a thinking partner.
type Persona string

const (
	Critic      Persona = "critic"
	Editor      Persona = "editor"
	Researcher  Persona = "researcher"
	Synthesizer Persona = "synthesizer"
)

// Replies shown to the user when no answer can be produced.
const (
	FallbackResponse  = "Error: Could not get response"
	NoProjectResponse = "Error: No project selected"
)

// Responder produces a persona's reply to a prompt.
type Responder interface {
	Respond(ctx context.Context, p Persona, prompt string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, p Persona, prompt string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, p Persona, prompt string) (string, error) {
	return f(ctx, p, prompt)
}

// Profile describes a persona for display and for model prompting.
type Profile struct {
	Persona     Persona `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

var profiles = []Profile{
	{Critic, "Critic", "Challenge arguments and find logical gaps"},
	{Editor, "Editor", "Improve structure and coherence"},
	{Researcher, "Researcher", "Provide evidence and citations"},
	{Synthesizer, "Synthesizer", "Connect ideas and reveal patterns"},
}

var (
	ErrUnknownPersona = errors.Validation(errors.CodeUnknownPersona.String(), "unknown persona").
		WithResource("persona").
		Build()
	ErrEmptyPrompt = errors.Validation(errors.CodeInvalidInput.String(), "prompt must not be empty").
		WithResource("persona").
		Build()
)

// Profiles lists every persona in display order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ParsePersona validates a persona tag.
func ParsePersona(s string) (Persona, error) {
	p := Persona(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", errors.From(ErrUnknownPersona).WithDetailsf("persona %q", s).Build()
	}
	return p, nil
}

func (p Persona) IsValid() bool {
	_, ok := p.profile()
	return ok
}

func (p Persona) String() string { return string(p) }

func (p Persona) profile() (Profile, bool) {
	for _, pr := range profiles {
		if pr.Persona == p {
			return pr, true
		}
	}
	return Profile{}, false
}

// SystemPrompt is the instruction given to language-model backends.
func SystemPrompt(p Persona) string {
	pr, _ := p.profile()
	return fmt.Sprintf(
		"You are the %s in a knowledge workspace. Your role: %s. "+
			"Answer the user's note or question in a few focused sentences.",
		pr.Name, strings.ToLower(pr.Description))
}

func validate(p Persona, prompt string) error {
	if !p.IsValid() {
		return errors.From(ErrUnknownPersona).WithDetailsf("persona %q", p).Build()
	}
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

func modelFailure(err error, backend string) error {
	return errors.External(errors.CodePersonaFailure.String(), "persona backend failed").
		WithResource("persona").
		WithOperation(backend).
		WithRetryable(true).
		WithCause(err).
		Build()
}
