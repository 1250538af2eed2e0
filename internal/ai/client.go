package ai

import "context"

// Client is the AI analysis collaborator. Implementations must treat the
// context deadline as the call budget; a timeout is a recoverable error.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
