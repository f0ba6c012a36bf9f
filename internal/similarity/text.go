package similarity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synapsed/synapse/internal/domain"
)

// TextStrategy ranks memories by Postgres full-text search rank. Under
// AutoStrategy it is used when the query carries no embedding; an agent
// with no embedded memories does not by itself trigger the fallback.
type TextStrategy struct {
	db *pgxpool.Pool
}

func NewTextStrategy(db *pgxpool.Pool) *TextStrategy {
	return &TextStrategy{db: db}
}

func (s *TextStrategy) Name() string              { return "text" }
func (s *TextStrategy) SupportsVectorSearch() bool { return false }

func (s *TextStrategy) ValidateSchema(ctx context.Context) error { return nil }
func (s *TextStrategy) Initialize(ctx context.Context) error     { return nil }

func (s *TextStrategy) Search(ctx context.Context, agentID, queryText string, queryVector []float32, k int, threshold float64) ([]domain.SimilarityMatch, error) {
	if k <= 0 {
		k = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, content, category_primary, category_secondary, category_confidence,
		        source, importance, access_count, last_accessed, embedding_magnitude, version, archived, created_at,
		        ts_rank_cd(to_tsvector('english', content), plainto_tsquery('english', $1)) AS score
		 FROM memories
		 WHERE agent_id = $2 AND NOT archived
		       AND to_tsvector('english', content) @@ plainto_tsquery('english', $1)
		 ORDER BY score DESC
		 LIMIT $3`,
		queryText, agentID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("text search query: %w", err)
	}
	defer rows.Close()

	var out []domain.SimilarityMatch
	for rows.Next() {
		var m domain.SimilarityMatch
		if err := rows.Scan(&m.Memory.ID, &m.Memory.AgentID, &m.Memory.Content, &m.Memory.Category.Primary, &m.Memory.Category.Secondary,
			&m.Memory.Category.Confidence, &m.Memory.Metadata.Source, &m.Memory.Metadata.Importance, &m.Memory.Metadata.AccessCount,
			&m.Memory.LastAccessed, &m.Memory.EmbeddingMagnitude, &m.Memory.Version, &m.Memory.Archived, &m.Memory.CreatedAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan text search row: %w", err)
		}
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
