// Package similarity implements domain.SimilaritySearchStrategy: the
// pluggable ranking behind MemoryStore.SearchSimilar, grounded on the
// teacher's pgvector-backed Recall/FindSimilar queries.
package similarity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/domain"
)

// VectorStrategy ranks memories by cosine distance over their pgvector
// embedding column, using the `<=>` operator exposed by the pgvector
// extension.
type VectorStrategy struct {
	db *pgxpool.Pool
}

func NewVectorStrategy(db *pgxpool.Pool) *VectorStrategy {
	return &VectorStrategy{db: db}
}

func (s *VectorStrategy) Name() string               { return "vector" }
func (s *VectorStrategy) SupportsVectorSearch() bool  { return true }

// ValidateSchema confirms the pgvector extension is installed, failing
// fast rather than surfacing an opaque SQL error on the first search.
// The embedding column itself is not checked.
func (s *VectorStrategy) ValidateSchema(ctx context.Context) error {
	var present bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&present)
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "checking pgvector extension", err)
	}
	if !present {
		return apperr.New(apperr.StorageUnavailable, "pgvector extension is not installed")
	}
	return nil
}

func (s *VectorStrategy) Initialize(ctx context.Context) error {
	return s.ValidateSchema(ctx)
}

func (s *VectorStrategy) Search(ctx context.Context, agentID, queryText string, queryVector []float32, k int, threshold float64) ([]domain.SimilarityMatch, error) {
	if len(queryVector) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "vector strategy requires a query embedding")
	}
	if k <= 0 {
		k = 10
	}
	vec := pgvector.NewVector(queryVector)

	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, content, category_primary, category_secondary, category_confidence,
		        source, importance, access_count, last_accessed, embedding_magnitude, version, archived, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM memories
		 WHERE agent_id = $2 AND NOT archived AND embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $3
		 ORDER BY score DESC
		 LIMIT $4`,
		vec, agentID, threshold, k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search query: %w", err)
	}
	defer rows.Close()

	var out []domain.SimilarityMatch
	for rows.Next() {
		var m domain.SimilarityMatch
		if err := rows.Scan(&m.Memory.ID, &m.Memory.AgentID, &m.Memory.Content, &m.Memory.Category.Primary, &m.Memory.Category.Secondary,
			&m.Memory.Category.Confidence, &m.Memory.Metadata.Source, &m.Memory.Metadata.Importance, &m.Memory.Metadata.AccessCount,
			&m.Memory.LastAccessed, &m.Memory.EmbeddingMagnitude, &m.Memory.Version, &m.Memory.Archived, &m.Memory.CreatedAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan vector search row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
