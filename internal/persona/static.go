package persona

import "context"

var cannedResponses = map[Persona]string{
	Critic:      "As a critic, I would challenge your premise by asking: What evidence supports this claim? Have you considered alternative explanations? Your argument could be strengthened by addressing potential counterarguments.",
	Editor:      "From an editorial perspective, I suggest restructuring your argument for better flow. Consider: 1) Stronger opening statement, 2) Clear supporting points, 3) Logical progression, 4) Powerful conclusion.",
	Researcher:  "Based on the context, you might want to explore these sources: Recent studies in this field show conflicting results. I recommend looking into meta-analyses and systematic reviews for more comprehensive evidence.",
	Synthesizer: "I see interesting patterns emerging: Your blocks reveal three main themes that could be connected. Consider how your hypothesis relates to your evidence, and how your questions might lead to new research directions.",
}

// Static answers every prompt with the persona's canned reply.
type Static struct{}

// NewStatic returns the canned-reply responder.
func NewStatic() *Static { return &Static{} }

// Respond ignores the prompt text.
func (s *Static) Respond(ctx context.Context, p Persona, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	reply, ok := cannedResponses[p]
	if !ok {
		return "", validate(p, prompt)
	}
	return reply, nil
}
