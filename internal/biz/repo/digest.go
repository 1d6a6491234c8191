package repo

import "context"

// CompletionRepo produces a text completion for a system and user prompt
type CompletionRepo interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
