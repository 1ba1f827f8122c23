package ai

import "context"

// Client is the external AI collaborator. Both operations may legitimately
// return an empty result; callers decide the fallback.
type Client interface {
	// CompleteChat returns a chat completion for the prompt.
	CompleteChat(ctx context.Context, prompt string) (string, error)
	// GenerateImage returns a URL of a generated image for the prompt.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
