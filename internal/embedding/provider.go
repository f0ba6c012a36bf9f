// Package embedding provides the ingestion pipeline's Embedder: a real
// OpenAI-backed client and a deterministic mock for tests and local
// development. Grounded on the teacher's internal/embedding package.
package embedding

import (
	"context"
	"fmt"
)

// Provider names accepted by NewEmbedder.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Embedder computes a vector embedding for a piece of text. Satisfies
// ingestion.Embedder.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// NewEmbedder builds an Embedder for the named provider. Returns an
// error if the provider is unknown, or if apiKey is empty for a
// provider that requires one.
func NewEmbedder(provider, apiKey string) (Embedder, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
		return NewOpenAIEmbedder(apiKey), nil
	case ProviderMock:
		return NewMockEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}
