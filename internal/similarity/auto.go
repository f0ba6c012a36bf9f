package similarity

import (
	"context"

	"github.com/synapsed/synapse/internal/domain"
)

// AutoStrategy picks VectorStrategy when the caller supplied an
// embedding, falling back to TextStrategy otherwise. This is the
// default SimilaritySearchStrategy (config SIMILARITY_VECTOR_STRATEGY=auto).
type AutoStrategy struct {
	vector *VectorStrategy
	text   *TextStrategy
}

func NewAutoStrategy(vector *VectorStrategy, text *TextStrategy) *AutoStrategy {
	return &AutoStrategy{vector: vector, text: text}
}

func (s *AutoStrategy) Name() string              { return "auto" }
func (s *AutoStrategy) SupportsVectorSearch() bool { return true }

func (s *AutoStrategy) ValidateSchema(ctx context.Context) error {
	return s.vector.ValidateSchema(ctx)
}

func (s *AutoStrategy) Initialize(ctx context.Context) error {
	if err := s.vector.Initialize(ctx); err != nil {
		return err
	}
	return s.text.Initialize(ctx)
}

func (s *AutoStrategy) Search(ctx context.Context, agentID, queryText string, queryVector []float32, k int, threshold float64) ([]domain.SimilarityMatch, error) {
	if len(queryVector) > 0 {
		return s.vector.Search(ctx, agentID, queryText, queryVector, k, threshold)
	}
	return s.text.Search(ctx, agentID, queryText, queryVector, k, threshold)
}
