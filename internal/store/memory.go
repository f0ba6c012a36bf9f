package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/synapsed/synapse/internal/domain"
)

// MemoryStore is the pgx-backed implementation of domain.MemoryStore. It
// delegates ranked search to a pluggable domain.SimilaritySearchStrategy
// so the vector/text/auto decision lives outside the storage layer.
type MemoryStore struct {
	db       *pgxpool.Pool
	strategy domain.SimilaritySearchStrategy
}

func NewMemoryStore(db *pgxpool.Pool, strategy domain.SimilaritySearchStrategy) *MemoryStore {
	return &MemoryStore{db: db, strategy: strategy}
}

func (s *MemoryStore) Put(ctx context.Context, m *domain.MemoryRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	var embedding *pgvector.Vector
	if len(m.Embedding) > 0 {
		v := pgvector.NewVector(m.Embedding)
		embedding = &v
	}

	extra, err := json.Marshal(m.Metadata.Extra)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tags, err := json.Marshal(m.Category.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memories (id, agent_id, content, category_primary, category_secondary, category_tags, category_confidence,
		                        source, importance, access_count, embedding, embedding_magnitude, version, archived, metadata_extra, created_at, last_accessed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		 RETURNING created_at, last_accessed`,
		m.ID, m.AgentID, m.Content, m.Category.Primary, m.Category.Secondary, tags, m.Category.Confidence,
		m.Metadata.Source, m.Metadata.Importance, m.Metadata.AccessCount, embedding, m.EmbeddingMagnitude, m.Version, m.Archived, extra,
	).Scan(&m.CreatedAt, &m.LastAccessed)
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.MemoryRecord, error) {
	m := &domain.MemoryRecord{}
	var tags []byte
	var extra []byte
	var embedding pgvector.Vector
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, content, category_primary, category_secondary, category_tags, category_confidence,
		        source, importance, access_count, last_accessed, embedding, embedding_magnitude, version, archived, created_at, metadata_extra
		 FROM memories WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.AgentID, &m.Content, &m.Category.Primary, &m.Category.Secondary, &tags, &m.Category.Confidence,
		&m.Metadata.Source, &m.Metadata.Importance, &m.Metadata.AccessCount, &m.LastAccessed, &embedding, &m.EmbeddingMagnitude, &m.Version, &m.Archived, &m.CreatedAt, &extra)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.Embedding = embedding.Slice()
	_ = json.Unmarshal(tags, &m.Category.Tags)
	_ = json.Unmarshal(extra, &m.Metadata.Extra)
	return m, nil
}

func (s *MemoryStore) GetMany(ctx context.Context, ids []string) ([]domain.MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, content, category_primary, category_secondary, category_confidence,
		        source, importance, access_count, last_accessed, embedding_magnitude, version, archived, created_at
		 FROM memories WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MemoryRecord
	for rows.Next() {
		var m domain.MemoryRecord
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Content, &m.Category.Primary, &m.Category.Secondary, &m.Category.Confidence,
			&m.Metadata.Source, &m.Metadata.Importance, &m.Metadata.AccessCount, &m.LastAccessed, &m.EmbeddingMagnitude, &m.Version, &m.Archived, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MemoryStore) ListByAgent(ctx context.Context, agentID string, limit int, cursor string) ([]domain.MemoryRecord, string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, content, category_primary, category_secondary, category_confidence,
		        source, importance, access_count, last_accessed, embedding_magnitude, version, archived, created_at
		 FROM memories
		 WHERE agent_id = $1 AND NOT archived AND ($2 = '' OR id::text > $2)
		 ORDER BY id
		 LIMIT $3`,
		agentID, cursor, limit,
	)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.MemoryRecord
	var next string
	for rows.Next() {
		var m domain.MemoryRecord
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Content, &m.Category.Primary, &m.Category.Secondary, &m.Category.Confidence,
			&m.Metadata.Source, &m.Metadata.Importance, &m.Metadata.AccessCount, &m.LastAccessed, &m.EmbeddingMagnitude, &m.Version, &m.Archived, &m.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, m)
		next = m.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, m *domain.MemoryRecord) error {
	var embedding *pgvector.Vector
	if len(m.Embedding) > 0 {
		v := pgvector.NewVector(m.Embedding)
		embedding = &v
	}
	tags, err := json.Marshal(m.Category.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE memories
		 SET content = $2, category_primary = $3, category_secondary = $4, category_tags = $5, category_confidence = $6,
		     source = $7, importance = $8, embedding = $9, embedding_magnitude = $10, version = version + 1, archived = $11
		 WHERE id = $1`,
		m.ID, m.Content, m.Category.Primary, m.Category.Secondary, tags, m.Category.Confidence,
		m.Metadata.Source, m.Metadata.Importance, embedding, m.EmbeddingMagnitude, m.Archived,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	m.Version++
	return nil
}

func (s *MemoryStore) SearchSimilar(ctx context.Context, queryText string, queryVector []float32, k int, agentID string, threshold *float64) ([]domain.SimilarityMatch, error) {
	t := 0.0
	if threshold != nil {
		t = *threshold
	}
	matches, err := s.strategy.Search(ctx, agentID, queryText, queryVector, k, t)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Memory.ID)
	}
	if err := s.TouchAccess(ctx, ids); err != nil {
		return matches, err
	}
	return matches, nil
}

// TouchAccess atomically refreshes lastAccessed and increments
// metadata.accessCount for every id, as required of any SearchSimilar result.
func (s *MemoryStore) TouchAccess(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = NOW() WHERE id = ANY($1)`,
		ids,
	)
	return err
}

func (s *MemoryStore) CountByAgent(ctx context.Context, agentID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM memories WHERE agent_id = $1 AND NOT archived`, agentID).Scan(&count)
	return count, err
}

// ListDistinctAgentIDs returns every agent with at least one stored
// memory, used by the forgetting engine's background sweep to decide
// which agents to run performForgetting for.
func (s *MemoryStore) ListDistinctAgentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT agent_id FROM memories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var agentID string
		if err := rows.Scan(&agentID); err != nil {
			return nil, err
		}
		out = append(out, agentID)
	}
	return out, rows.Err()
}

func (s *MemoryStore) Archive(ctx context.Context, ids []string, reason string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE memories SET archived = true, metadata_extra = jsonb_set(COALESCE(metadata_extra, '{}'::jsonb), '{archive_reason}', to_jsonb($2::text)) WHERE id = ANY($1)`,
		ids, reason,
	)
	return err
}

func (s *MemoryStore) Restore(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE memories SET archived = false WHERE id = ANY($1)`, ids)
	return err
}

func (s *MemoryStore) ListArchived(ctx context.Context, agentID string) ([]domain.MemoryRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, content, category_primary, category_secondary, category_confidence,
		        source, importance, access_count, last_accessed, embedding_magnitude, version, archived, created_at
		 FROM memories WHERE agent_id = $1 AND archived`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MemoryRecord
	for rows.Next() {
		var m domain.MemoryRecord
		if err := rows.Scan(&m.ID, &m.AgentID, &m.Content, &m.Category.Primary, &m.Category.Secondary, &m.Category.Confidence,
			&m.Metadata.Source, &m.Metadata.Importance, &m.Metadata.AccessCount, &m.LastAccessed, &m.EmbeddingMagnitude, &m.Version, &m.Archived, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
