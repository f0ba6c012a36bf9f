package store

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synapsed/synapse/internal/domain"
)

// BeliefStore is the pgx-backed implementation of domain.BeliefStore.
type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

func (s *BeliefStore) Put(ctx context.Context, b *domain.Belief) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	evidence := setToSlice(b.EvidenceMemoryIDs)
	tags := setToSlice(b.Tags)

	var category, secondary *string
	if b.Category != nil {
		category = &b.Category.Primary
		if b.Category.Secondary != "" {
			secondary = &b.Category.Secondary
		}
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO beliefs (id, agent_id, statement, confidence, category, category_secondary,
		                       reinforcement_count, active, evidence_memory_ids, tags, version, created_at, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 RETURNING created_at, last_updated`,
		b.ID, b.AgentID, b.Statement, b.Confidence, category, secondary,
		b.ReinforcementCount, b.Active, evidence, tags, b.Version,
	).Scan(&b.CreatedAt, &b.LastUpdated)
}

func (s *BeliefStore) Get(ctx context.Context, id string) (*domain.Belief, error) {
	b := &domain.Belief{Category: &domain.CategoryLabel{}}
	var secondary *string
	var evidence, tags []string
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, statement, confidence, category, category_secondary,
		        reinforcement_count, active, evidence_memory_ids, tags, version, created_at, last_updated
		 FROM beliefs WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.AgentID, &b.Statement, &b.Confidence, &b.Category.Primary, &secondary,
		&b.ReinforcementCount, &b.Active, &evidence, &tags, &b.Version, &b.CreatedAt, &b.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if secondary != nil {
		b.Category.Secondary = *secondary
	}
	b.EvidenceMemoryIDs = sliceToSet(evidence)
	b.Tags = sliceToSet(tags)
	return b, nil
}

func (s *BeliefStore) GetMany(ctx context.Context, ids []string) ([]domain.Belief, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, statement, confidence, category, category_secondary,
		        reinforcement_count, active, evidence_memory_ids, tags, version, created_at, last_updated
		 FROM beliefs WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

func (s *BeliefStore) Update(ctx context.Context, b *domain.Belief) error {
	evidence := setToSlice(b.EvidenceMemoryIDs)
	tags := setToSlice(b.Tags)
	var category, secondary *string
	if b.Category != nil {
		category = &b.Category.Primary
		if b.Category.Secondary != "" {
			secondary = &b.Category.Secondary
		}
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs
		 SET statement = $2, confidence = $3, category = $4, category_secondary = $5,
		     reinforcement_count = $6, active = $7, evidence_memory_ids = $8, tags = $9,
		     version = version + 1, last_updated = NOW()
		 WHERE id = $1`,
		b.ID, b.Statement, b.Confidence, category, secondary, b.ReinforcementCount, b.Active, evidence, tags,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	b.Version++
	return nil
}

func (s *BeliefStore) StoreBatch(ctx context.Context, beliefs []domain.Belief) ([]domain.Belief, error) {
	out := make([]domain.Belief, 0, len(beliefs))
	for i := range beliefs {
		b := beliefs[i]
		if err := s.Put(ctx, &b); err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}

// FindAllByAgent returns every belief owned by agentID, used to build a
// full KnowledgeGraphSnapshot.
func (s *BeliefStore) FindAllByAgent(ctx context.Context, agentID string, includeInactive bool) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, statement, confidence, category, category_secondary,
		        reinforcement_count, active, evidence_memory_ids, tags, version, created_at, last_updated
		 FROM beliefs WHERE agent_id = $1 AND ($2 OR active)`,
		agentID, includeInactive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

func (s *BeliefStore) FindByAgentAndCategory(ctx context.Context, agentID, category string, onlyActive bool) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, statement, confidence, category, category_secondary,
		        reinforcement_count, active, evidence_memory_ids, tags, version, created_at, last_updated
		 FROM beliefs WHERE agent_id = $1 AND category = $2 AND ($3 = false OR active)`,
		agentID, category, onlyActive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

func (s *BeliefStore) CountByAgent(ctx context.Context, agentID string, includeInactive bool) (uint64, error) {
	var count uint64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM beliefs WHERE agent_id = $1 AND ($2 OR active)`,
		agentID, includeInactive,
	).Scan(&count)
	return count, err
}

// CountCitingMemory reports how many active beliefs carry memoryID in
// their evidence set, used by the forgetting engine's belief-support
// relevance factor.
func (s *BeliefStore) CountCitingMemory(ctx context.Context, agentID, memoryID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM beliefs WHERE agent_id = $1 AND active AND $2 = ANY(evidence_memory_ids)`,
		agentID, memoryID,
	).Scan(&count)
	return count, err
}

// atRiskConfidence is the confidence a belief must fall below to count
// as "at risk" in GetMemoryHealth.
const atRiskConfidence = 0.4

// GetMemoryHealth rolls up an agent's active beliefs into a health
// summary, grounded on the teacher's ConsolidationService.GetMemoryHealth.
func (s *BeliefStore) GetMemoryHealth(ctx context.Context, agentID string) (*domain.MemoryHealth, error) {
	beliefs, err := s.FindAllByAgent(ctx, agentID, false)
	if err != nil {
		return nil, err
	}
	h := &domain.MemoryHealth{AgentID: agentID, UncertaintyByCategory: map[string]int{}}
	for _, b := range beliefs {
		h.TotalBeliefs++
		if b.Confidence < atRiskConfidence {
			h.AtRiskBeliefs++
			if b.Category != nil {
				h.UncertaintyByCategory[b.Category.Primary]++
			}
		}
		if b.ReinforcementCount > 1 {
			h.RecentlyReinforced++
		}
	}
	return h, nil
}

func (s *BeliefStore) CountByCategory(ctx context.Context, agentID string) (map[string]uint64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT category, COUNT(*) FROM beliefs WHERE agent_id = $1 AND active GROUP BY category`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]uint64{}
	for rows.Next() {
		var cat string
		var n uint64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

func (s *BeliefStore) FindLowConfidence(ctx context.Context, agentID string, threshold float64) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, statement, confidence, category, category_secondary,
		        reinforcement_count, active, evidence_memory_ids, tags, version, created_at, last_updated
		 FROM beliefs WHERE agent_id = $1 AND active AND confidence < $2
		 ORDER BY confidence ASC`,
		agentID, threshold,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

func (s *BeliefStore) SearchByText(ctx context.Context, agentID string, q string) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, statement, confidence, category, category_secondary,
		        reinforcement_count, active, evidence_memory_ids, tags, version, created_at, last_updated
		 FROM beliefs
		 WHERE agent_id = $1 AND active
		       AND to_tsvector('english', statement) @@ plainto_tsquery('english', $2)
		 ORDER BY confidence DESC`,
		agentID, q,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

// FindSimilar implements BeliefStore.findSimilar: it loads an agent's
// active beliefs and ranks them against statement using similarity,
// keeping only those at or above threshold, sorted by similarity desc
// and capped at k.
func (s *BeliefStore) FindSimilar(ctx context.Context, statement, agentID string, threshold float64, k int, similarity domain.BeliefSimilarityFunc) ([]domain.Belief, error) {
	candidates, err := s.FindAllByAgent(ctx, agentID, false)
	if err != nil {
		return nil, err
	}

	type scored struct {
		belief domain.Belief
		score  float64
	}
	var matches []scored
	for _, b := range candidates {
		sim, err := similarity(ctx, statement, b.Statement)
		if err != nil {
			continue
		}
		if sim >= threshold {
			matches = append(matches, scored{belief: b, score: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}

	out := make([]domain.Belief, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.belief)
	}
	return out, nil
}

func (s *BeliefStore) CreateConflict(ctx context.Context, c *domain.BeliefConflict) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO belief_conflicts (id, agent_id, conflicting_belief_ids, new_evidence_memory_id, description,
		                                conflict_type, severity, detected_at, resolved, auto_resolvable)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), false, $8)
		 RETURNING detected_at`,
		c.ID, c.AgentID, c.ConflictingBeliefIDs, c.NewEvidenceMemoryID, c.Description, c.ConflictType, c.Severity, c.AutoResolvable,
	).Scan(&c.DetectedAt)
}

func (s *BeliefStore) ResolveConflict(ctx context.Context, id string, strategy domain.ResolutionStrategy, notes string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE belief_conflicts SET resolved = true, resolved_at = NOW(), resolution_strategy = $2, resolution_notes = $3 WHERE id = $1`,
		id, strategy, notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) UnresolvedConflicts(ctx context.Context, agentID string) ([]domain.BeliefConflict, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, conflicting_belief_ids, new_evidence_memory_id, description, conflict_type, severity,
		        detected_at, resolved, auto_resolvable
		 FROM belief_conflicts WHERE agent_id = $1 AND NOT resolved`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BeliefConflict
	for rows.Next() {
		var c domain.BeliefConflict
		if err := rows.Scan(&c.ID, &c.AgentID, &c.ConflictingBeliefIDs, &c.NewEvidenceMemoryID, &c.Description,
			&c.ConflictType, &c.Severity, &c.DetectedAt, &c.Resolved, &c.AutoResolvable); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanBeliefs(rows pgx.Rows) ([]domain.Belief, error) {
	var out []domain.Belief
	for rows.Next() {
		b := domain.Belief{Category: &domain.CategoryLabel{}}
		var secondary *string
		var evidence, tags []string
		if err := rows.Scan(&b.ID, &b.AgentID, &b.Statement, &b.Confidence, &b.Category.Primary, &secondary,
			&b.ReinforcementCount, &b.Active, &evidence, &tags, &b.Version, &b.CreatedAt, &b.LastUpdated); err != nil {
			return nil, err
		}
		if secondary != nil {
			b.Category.Secondary = *secondary
		}
		b.EvidenceMemoryIDs = sliceToSet(evidence)
		b.Tags = sliceToSet(tags)
		out = append(out, b)
	}
	return out, rows.Err()
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sliceToSet(s []string) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for _, v := range s {
		out[v] = struct{}{}
	}
	return out
}
