package embedding

import (
	"context"
	"hash/fnv"
)

const mockDimensions = 32

// MockEmbedder derives a deterministic, content-stable vector from a
// hash of the input so similarity comparisons over mock-embedded text
// are repeatable in tests and local runs without a network call.
type MockEmbedder struct{}

func NewMockEmbedder() *MockEmbedder { return &MockEmbedder{} }

func (m *MockEmbedder) Embed(ctx context.Context, content string) ([]float32, error) {
	vec := make([]float32, mockDimensions)
	h := fnv.New32a()
	for i := range vec {
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(content))
		sum := h.Sum32()
		vec[i] = float32(sum%1000) / 1000.0
	}
	return vec, nil
}
