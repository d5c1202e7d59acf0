package ai

import "context"

// Client invokes the natural-language code-evaluation service. The boundary
// is deliberately thin: one prompt in, one raw text completion out. Turning
// the reply into a structured verdict is the caller's responsibility,
// because the service's output shape cannot be trusted.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
