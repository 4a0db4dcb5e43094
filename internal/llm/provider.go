// Package llm talks to the generative-text provider used to answer questions from
// search results.
package llm

import "context"

// Prompt is a single grounded request to the provider.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Provider generates text for a prompt, either in one piece or as a stream.
type Provider interface {
	Model() string
	Complete(ctx context.Context, p Prompt) (string, error)
	Stream(ctx context.Context, p Prompt) (ChunkStream, error)
}

// ChunkStream yields the text increments of a streamed completion. Recv returns
// io.EOF after the provider's end marker. Close releases the underlying connection
// and may be called more than once.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}
