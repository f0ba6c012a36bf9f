package extraction

import (
	"fmt"

	"github.com/synapsed/synapse/internal/domain"
)

// NewProvider builds the configured ExtractionProvider backend.
func NewProvider(name, apiKey string) (domain.ExtractionProvider, error) {
	switch name {
	case "", "mock":
		return NewMockProvider(), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("extraction provider %q requires an API key", name)
		}
		return NewAnthropicProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", name)
	}
}
