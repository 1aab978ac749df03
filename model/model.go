package model

import "context"

// Generator produces text for a prompt under an optional system prompt.
// Implementations return ok=false when generation is unavailable (provider
// down, rate limited, empty completion); callers treat that as a signal to
// degrade, not as a fatal error.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (text string, ok bool)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt, system string) (string, bool)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt, system string) (string, bool) {
	return f(ctx, prompt, system)
}
