package embed

import "context"

// Provider turns free text into a dense vector for semantic search. The
// embedding pipeline itself is an external collaborator; callers only see
// this interface.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
