package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/domain"
)

// RelationshipStore is the pgx-backed implementation of
// domain.RelationshipStore: typed, temporal belief-graph edges plus the
// traversal/aggregation operations over them.
type RelationshipStore struct {
	db       *pgxpool.Pool
	maxNodes int
}

// NewRelationshipStore builds a RelationshipStore. maxNodes bounds how
// many beliefs FindRelatedBeliefIds/FindShortestPath/FindBeliefClusters
// will visit before giving up with apperr.TraversalLimitExceeded; 0
// means unbounded.
func NewRelationshipStore(db *pgxpool.Pool, maxNodes int) *RelationshipStore {
	return &RelationshipStore{db: db, maxNodes: maxNodes}
}

func (s *RelationshipStore) CreateRelationship(ctx context.Context, sourceID, targetID string, typ domain.RelationshipType, strength float64, agentID string, metadata map[string]string) (*domain.BeliefRelationship, error) {
	return s.CreateTemporal(ctx, sourceID, targetID, typ, strength, agentID, nil, nil, metadata)
}

func (s *RelationshipStore) CreateTemporal(ctx context.Context, sourceID, targetID string, typ domain.RelationshipType, strength float64, agentID string, effectiveFrom, effectiveUntil *time.Time, metadata map[string]string) (*domain.BeliefRelationship, error) {
	if sourceID == targetID {
		return nil, apperr.New(apperr.SelfReference, "a belief cannot relate to itself")
	}
	r := &domain.BeliefRelationship{
		ID:             uuid.NewString(),
		SourceBeliefID: sourceID,
		TargetBeliefID: targetID,
		AgentID:        agentID,
		Type:           typ,
		Strength:       strength,
		EffectiveFrom:  effectiveFrom,
		EffectiveUntil: effectiveUntil,
		Active:         true,
		Metadata:       metadata,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO belief_relationships (id, source_belief_id, target_belief_id, agent_id, type, strength,
		                                    effective_from, effective_until, active, metadata, priority, created_at, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, 0, NOW(), NOW())
		 RETURNING created_at, last_updated`,
		r.ID, r.SourceBeliefID, r.TargetBeliefID, r.AgentID, r.Type, r.Strength, r.EffectiveFrom, r.EffectiveUntil, r.Metadata,
	).Scan(&r.CreatedAt, &r.LastUpdated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, err
	}
	return r, nil
}

// DeprecateBeliefWith records that newID supersedes oldID: it creates a
// SUPERSEDES edge from new to old and deactivates oldID so read paths
// stop surfacing it as a live belief. The edge insert, the reason update
// and the deactivation are separate statements on the pool, not one
// transaction: a failure part-way leaves the earlier writes in place.
func (s *RelationshipStore) DeprecateBeliefWith(ctx context.Context, oldID, newID, reason, agentID string) (*domain.BeliefRelationship, error) {
	r, err := s.CreateRelationship(ctx, newID, oldID, domain.RelSupersedes, 1.0, agentID, nil)
	if err != nil {
		return nil, err
	}
	r.DeprecationReason = reason
	_, err = s.db.Exec(ctx, `UPDATE belief_relationships SET deprecation_reason = $2 WHERE id = $1`, r.ID, reason)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(ctx, `UPDATE beliefs SET active = false, last_updated = NOW() WHERE id = $1`, oldID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

const relationshipColumns = `id, source_belief_id, target_belief_id, agent_id, type, strength,
	effective_from, effective_until, deprecation_reason, priority, active, metadata, created_at, last_updated`

func scanRelationship(row pgx.Row) (*domain.BeliefRelationship, error) {
	r := &domain.BeliefRelationship{}
	err := row.Scan(&r.ID, &r.SourceBeliefID, &r.TargetBeliefID, &r.AgentID, &r.Type, &r.Strength,
		&r.EffectiveFrom, &r.EffectiveUntil, &r.DeprecationReason, &r.Priority, &r.Active, &r.Metadata, &r.CreatedAt, &r.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func scanRelationships(rows pgx.Rows) ([]domain.BeliefRelationship, error) {
	var out []domain.BeliefRelationship
	for rows.Next() {
		var r domain.BeliefRelationship
		if err := rows.Scan(&r.ID, &r.SourceBeliefID, &r.TargetBeliefID, &r.AgentID, &r.Type, &r.Strength,
			&r.EffectiveFrom, &r.EffectiveUntil, &r.DeprecationReason, &r.Priority, &r.Active, &r.Metadata, &r.CreatedAt, &r.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RelationshipStore) FindByID(ctx context.Context, id string) (*domain.BeliefRelationship, error) {
	row := s.db.QueryRow(ctx, `SELECT `+relationshipColumns+` FROM belief_relationships WHERE id = $1`, id)
	return scanRelationship(row)
}

func (s *RelationshipStore) FindByBelief(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships
		 WHERE agent_id = $2 AND (source_belief_id = $1 OR target_belief_id = $1)
		 ORDER BY strength DESC, created_at ASC, id ASC`,
		beliefID, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) FindOutgoing(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships WHERE agent_id = $2 AND source_belief_id = $1`,
		beliefID, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) FindIncoming(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships WHERE agent_id = $2 AND target_belief_id = $1`,
		beliefID, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) FindByType(ctx context.Context, agentID string, typ domain.RelationshipType) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships WHERE agent_id = $1 AND type = $2`,
		agentID, typ,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) FindBetween(ctx context.Context, sourceID, targetID, agentID string) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships
		 WHERE agent_id = $3 AND source_belief_id = $1 AND target_belief_id = $2`,
		sourceID, targetID, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) FindDeprecating(ctx context.Context, agentID string) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships
		 WHERE agent_id = $1 AND type = ANY($2)`,
		agentID, deprecatingTypeStrings(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) FindCurrentlyEffective(ctx context.Context, agentID string, now time.Time) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships
		 WHERE agent_id = $1 AND active
		       AND (effective_from IS NULL OR effective_from <= $2)
		       AND (effective_until IS NULL OR effective_until >= $2)`,
		agentID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) FindHighStrength(ctx context.Context, agentID string, threshold float64) ([]domain.BeliefRelationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+relationshipColumns+` FROM belief_relationships WHERE agent_id = $1 AND active AND strength >= $2`,
		agentID, threshold,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (s *RelationshipStore) Update(ctx context.Context, r *domain.BeliefRelationship) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE belief_relationships
		 SET type = $2, strength = $3, effective_from = $4, effective_until = $5,
		     deprecation_reason = $6, priority = $7, active = $8, metadata = $9, last_updated = NOW()
		 WHERE id = $1`,
		r.ID, r.Type, r.Strength, r.EffectiveFrom, r.EffectiveUntil, r.DeprecationReason, r.Priority, r.Active, r.Metadata,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RelationshipStore) Deactivate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

func (s *RelationshipStore) Reactivate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

func (s *RelationshipStore) setActive(ctx context.Context, id string, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE belief_relationships SET active = $2, last_updated = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RelationshipStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM belief_relationships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Traversal ---
//
// The BFS below mirrors the teacher's hybrid-recall graph walk: a
// worklist of (beliefID, activation) pairs, a visited set, and
// per-hop activation decay, adapted from belief strength instead of
// memory-recall vector score.

const hopDecay = 0.7
const minActivation = 0.05

type frontierItem struct {
	beliefID   string
	activation float64
	depth      int
}

func (s *RelationshipStore) FindRelatedBeliefIds(ctx context.Context, startID, agentID string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	now := time.Now()
	visited := map[string]bool{startID: true}
	queue := []frontierItem{{beliefID: startID, activation: 1.0, depth: 0}}
	var related []string

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= maxDepth {
			continue
		}

		edges, err := s.FindByBelief(ctx, item.beliefID, agentID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if !e.Active || !e.EffectiveAt(now) {
				continue
			}
			neighbor := e.TargetBeliefID
			if neighbor == item.beliefID {
				neighbor = e.SourceBeliefID
			}
			if visited[neighbor] {
				continue
			}
			activation := item.activation * e.Strength * hopDecay
			if activation < minActivation {
				continue
			}
			if s.maxNodes > 0 && len(visited) >= s.maxNodes {
				return nil, apperr.New(apperr.TraversalLimitExceeded, "belief graph traversal exceeded the configured node limit")
			}
			visited[neighbor] = true
			related = append(related, neighbor)
			queue = append(queue, frontierItem{beliefID: neighbor, activation: activation, depth: item.depth + 1})
		}
	}
	return related, nil
}

func (s *RelationshipStore) FindShortestPath(ctx context.Context, sourceID, targetID, agentID string) ([]domain.BeliefRelationship, error) {
	type node struct {
		beliefID string
		via      *domain.BeliefRelationship
		prev     *node
	}
	now := time.Now()
	visited := map[string]bool{sourceID: true}
	queue := []*node{{beliefID: sourceID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.beliefID == targetID {
			var path []domain.BeliefRelationship
			for n := cur; n.via != nil; n = n.prev {
				path = append([]domain.BeliefRelationship{*n.via}, path...)
			}
			return path, nil
		}

		edges, err := s.FindByBelief(ctx, cur.beliefID, agentID)
		if err != nil {
			return nil, err
		}
		for i := range edges {
			e := edges[i]
			if !e.Active || !e.EffectiveAt(now) {
				continue
			}
			neighbor := e.TargetBeliefID
			if neighbor == cur.beliefID {
				neighbor = e.SourceBeliefID
			}
			if visited[neighbor] {
				continue
			}
			if s.maxNodes > 0 && len(visited) >= s.maxNodes {
				return nil, apperr.New(apperr.TraversalLimitExceeded, "belief graph traversal exceeded the configured node limit")
			}
			visited[neighbor] = true
			queue = append(queue, &node{beliefID: neighbor, via: &e, prev: cur})
		}
	}
	return nil, apperr.New(apperr.NotFound, "no path between beliefs")
}

// FindBeliefClusters partitions the agent's belief graph into connected
// components over edges at or above threshold strength, using union-find.
func (s *RelationshipStore) FindBeliefClusters(ctx context.Context, agentID string, threshold float64) (map[int][]string, error) {
	edges, err := s.FindHighStrength(ctx, agentID, threshold)
	if err != nil {
		return nil, err
	}

	parent := map[string]string{}
	find := func(x string) string {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	ensure := func(id string) {
		if _, ok := parent[id]; !ok {
			parent[id] = id
		}
	}

	for _, e := range edges {
		ensure(e.SourceBeliefID)
		ensure(e.TargetBeliefID)
		union(e.SourceBeliefID, e.TargetBeliefID)
	}

	if s.maxNodes > 0 && len(parent) > s.maxNodes {
		return nil, apperr.New(apperr.TraversalLimitExceeded, "belief graph exceeds the configured node limit for clustering")
	}

	clusters := map[string][]string{}
	for id := range parent {
		root := find(id)
		clusters[root] = append(clusters[root], id)
	}

	out := map[int][]string{}
	i := 0
	for _, members := range clusters {
		out[i] = members
		i++
	}
	return out, nil
}

func (s *RelationshipStore) FindDeprecationChain(ctx context.Context, beliefID, agentID string) ([]string, error) {
	chain := []string{beliefID}
	current := beliefID
	visited := map[string]bool{beliefID: true}
	for {
		rows, err := s.db.Query(ctx,
			`SELECT source_belief_id FROM belief_relationships
			 WHERE agent_id = $1 AND target_belief_id = $2 AND type = ANY($3) AND active`,
			agentID, current, deprecatingTypeStrings(),
		)
		if err != nil {
			return nil, err
		}
		var next string
		if rows.Next() {
			if err := rows.Scan(&next); err != nil {
				rows.Close()
				return nil, err
			}
		}
		rows.Close()
		if next == "" || visited[next] {
			break
		}
		visited[next] = true
		chain = append(chain, next)
		current = next
	}
	return chain, nil
}

// FindPotentialConflicts returns pairs of active beliefs in the same
// category that are not linked by a relationship of any type, in either
// direction — candidates the belief engine's conflict detector has not
// yet evaluated.
func (s *RelationshipStore) FindPotentialConflicts(ctx context.Context, agentID string) ([][2]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT b1.id, b2.id
		 FROM beliefs b1
		 JOIN beliefs b2 ON b1.agent_id = b2.agent_id AND b1.category = b2.category AND b1.id < b2.id
		 WHERE b1.agent_id = $1 AND b1.active AND b2.active
		       AND NOT EXISTS (
		           SELECT 1 FROM belief_relationships r
		           WHERE r.agent_id = $1
		             AND ((r.source_belief_id = b1.id AND r.target_belief_id = b2.id)
		                  OR (r.source_belief_id = b2.id AND r.target_belief_id = b1.id))
		       )`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		out = append(out, [2]string{a, b})
	}
	return out, rows.Err()
}

func (s *RelationshipStore) GetComprehensiveGraphStatistics(ctx context.Context, agentID string) (*domain.GraphStatistics, error) {
	stats := &domain.GraphStatistics{EdgeCountByType: map[domain.RelationshipType]int{}}

	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM beliefs WHERE agent_id = $1`, agentID).Scan(&stats.BeliefCount)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM beliefs WHERE agent_id = $1 AND active`, agentID).Scan(&stats.ActiveBeliefCount)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT type, COUNT(*) FROM belief_relationships WHERE agent_id = $1 AND active GROUP BY type`, agentID)
	if err != nil {
		return nil, err
	}
	var totalEdges int
	for rows.Next() {
		var typ domain.RelationshipType
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.EdgeCountByType[typ] = n
		totalEdges += n
	}
	rows.Close()

	err = s.db.QueryRow(ctx, `SELECT COALESCE(AVG(strength), 0) FROM belief_relationships WHERE agent_id = $1 AND active`, agentID).Scan(&stats.AverageStrength)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM belief_relationships WHERE agent_id = $1 AND active AND type = ANY($2)`, agentID, deprecatingTypeStrings()).Scan(&stats.DeprecatedCount)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM beliefs b WHERE b.agent_id = $1 AND b.active AND NOT EXISTS (
		     SELECT 1 FROM belief_relationships r WHERE r.agent_id = $1 AND r.active AND (r.source_belief_id = b.id OR r.target_belief_id = b.id)
		 )`, agentID).Scan(&stats.IsolatedBeliefs)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(c), 0) FROM (SELECT COUNT(*) c FROM belief_relationships WHERE agent_id = $1 AND active GROUP BY source_belief_id) t`,
		agentID,
	).Scan(&stats.MaxFanOut)
	if err != nil {
		return nil, err
	}

	if stats.BeliefCount > 1 {
		maxPossible := float64(stats.BeliefCount) * float64(stats.BeliefCount-1)
		stats.Density = float64(totalEdges) / maxPossible
	}

	return stats, nil
}

// ValidateGraphStructure reports structural issues: dangling edges,
// self-referential edges, belief evidence ids with no matching memory,
// edges whose effectiveFrom is after effectiveUntil, and duplicate active
// edges for the same pair and type. Cycles are not checked.
func (s *RelationshipStore) ValidateGraphStructure(ctx context.Context, agentID string) ([]string, error) {
	var issues []string

	var dangling int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM belief_relationships r
		 WHERE r.agent_id = $1
		       AND (NOT EXISTS (SELECT 1 FROM beliefs b WHERE b.id = r.source_belief_id)
		            OR NOT EXISTS (SELECT 1 FROM beliefs b WHERE b.id = r.target_belief_id))`,
		agentID,
	).Scan(&dangling)
	if err != nil {
		return nil, err
	}
	if dangling > 0 {
		issues = append(issues, fmt.Sprintf("%d relationship(s) reference a missing belief", dangling))
	}

	var selfRefs int
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM belief_relationships WHERE agent_id = $1 AND source_belief_id = target_belief_id`,
		agentID,
	).Scan(&selfRefs)
	if err != nil {
		return nil, err
	}
	if selfRefs > 0 {
		issues = append(issues, fmt.Sprintf("%d self-referential relationship(s) found", selfRefs))
	}

	var orphanEvidence int
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM beliefs b, unnest(b.evidence_memory_ids) AS mem_id
		 WHERE b.agent_id = $1
		       AND NOT EXISTS (SELECT 1 FROM memories m WHERE m.id = mem_id::uuid)`,
		agentID,
	).Scan(&orphanEvidence)
	if err != nil {
		return nil, err
	}
	if orphanEvidence > 0 {
		issues = append(issues, fmt.Sprintf("%d belief evidence reference(s) point to a missing memory", orphanEvidence))
	}

	var badWindows int
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM belief_relationships
		 WHERE agent_id = $1 AND effective_from IS NOT NULL AND effective_until IS NOT NULL
		       AND effective_from > effective_until`,
		agentID,
	).Scan(&badWindows)
	if err != nil {
		return nil, err
	}
	if badWindows > 0 {
		issues = append(issues, fmt.Sprintf("%d relationship(s) have effectiveFrom after effectiveUntil", badWindows))
	}

	var duplicateActiveEdges int
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM (
		   SELECT source_belief_id, target_belief_id, type
		   FROM belief_relationships
		   WHERE agent_id = $1 AND active
		   GROUP BY source_belief_id, target_belief_id, type
		   HAVING COUNT(*) > 1
		 ) dupes`,
		agentID,
	).Scan(&duplicateActiveEdges)
	if err != nil {
		return nil, err
	}
	if duplicateActiveEdges > 0 {
		issues = append(issues, fmt.Sprintf("%d duplicate active edge(s) between the same belief pair and type", duplicateActiveEdges))
	}

	return issues, nil
}

func (s *RelationshipStore) CleanupOlderThan(ctx context.Context, agentID string, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM belief_relationships
		 WHERE agent_id = $1 AND NOT active AND last_updated < $2`,
		agentID, olderThan,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ApplyEdgeDecay exponentially decays the strength of every active edge
// not touched since notTraversedSince, grounded on the teacher's
// GraphStore.ApplyEdgeDecay. Supplements the memory-level forgetting
// strategies: this is the relationship-graph analogue, not a
// replacement for RelevanceForgettingEngine.
func (s *RelationshipStore) ApplyEdgeDecay(ctx context.Context, agentID string, factor float64, notTraversedSince time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE belief_relationships
		 SET strength = strength * $3, last_updated = NOW()
		 WHERE agent_id = $1 AND active AND last_updated < $2`,
		agentID, notTraversedSince, factor,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PruneGraph deactivates active edges that have decayed below
// minStrength or gone untouched since staleBefore, grounded on the
// teacher's GraphStore.PruneGraph. Pruned edges are deactivated rather
// than deleted, so they stay in the table for audit history;
// FindDeprecationChain follows only active edges and does not see them.
func (s *RelationshipStore) PruneGraph(ctx context.Context, agentID string, minStrength float64, staleBefore time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE belief_relationships
		 SET active = false, last_updated = NOW()
		 WHERE agent_id = $1 AND active AND (strength < $2 OR last_updated < $3)`,
		agentID, minStrength, staleBefore,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func deprecatingTypeStrings() []string {
	out := make([]string, len(domain.DeprecatingTypes))
	for i, t := range domain.DeprecatingTypes {
		out[i] = string(t)
	}
	return out
}
