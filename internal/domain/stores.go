package domain

import (
	"context"
	"time"
)

// BeliefSimilarityFunc scores how close two belief statements are, in
// [0,1]. BeliefStore.FindSimilar delegates scoring to one of these
// (backed by ExtractionProvider.Similarity) rather than embedding NLP
// logic in the store.
type BeliefSimilarityFunc func(ctx context.Context, a, b string) (float64, error)

// SimilarityMatch pairs a memory with the score it was ranked by.
type SimilarityMatch struct {
	Memory     MemoryRecord
	Similarity float64
}

// SimilaritySearchStrategy is the pluggable ranking algorithm behind
// MemoryStore.searchSimilar: vector cosine when embeddings are present,
// text match otherwise.
type SimilaritySearchStrategy interface {
	Name() string
	SupportsVectorSearch() bool
	ValidateSchema(ctx context.Context) error
	Initialize(ctx context.Context) error
	Search(ctx context.Context, agentID string, queryText string, queryVector []float32, k int, threshold float64) ([]SimilarityMatch, error)
}

// MemoryStore persists MemoryRecords and delegates ranked search to the
// active SimilaritySearchStrategy.
type MemoryStore interface {
	Put(ctx context.Context, m *MemoryRecord) error
	Get(ctx context.Context, id string) (*MemoryRecord, error)
	GetMany(ctx context.Context, ids []string) ([]MemoryRecord, error)
	ListByAgent(ctx context.Context, agentID string, limit int, cursor string) ([]MemoryRecord, string, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, m *MemoryRecord) error
	SearchSimilar(ctx context.Context, queryText string, queryVector []float32, k int, agentID string, threshold *float64) ([]SimilarityMatch, error)

	// TouchAccess atomically refreshes lastAccessed and increments
	// metadata.accessCount for the given memory ids, as required of
	// every result returned by SearchSimilar.
	TouchAccess(ctx context.Context, ids []string) error

	CountByAgent(ctx context.Context, agentID string) (int, error)
	ListDistinctAgentIDs(ctx context.Context) ([]string, error)
	Archive(ctx context.Context, ids []string, reason string) error
	Restore(ctx context.Context, ids []string) error
	ListArchived(ctx context.Context, agentID string) ([]MemoryRecord, error)
}

// BeliefStore persists Beliefs and BeliefConflicts, with aggregation
// queries that avoid loading the full set.
type BeliefStore interface {
	Put(ctx context.Context, b *Belief) error
	Get(ctx context.Context, id string) (*Belief, error)
	GetMany(ctx context.Context, ids []string) ([]Belief, error)
	Update(ctx context.Context, b *Belief) error
	StoreBatch(ctx context.Context, beliefs []Belief) ([]Belief, error)

	FindByAgentAndCategory(ctx context.Context, agentID, category string, onlyActive bool) ([]Belief, error)
	FindAllByAgent(ctx context.Context, agentID string, includeInactive bool) ([]Belief, error)

	CountByAgent(ctx context.Context, agentID string, includeInactive bool) (uint64, error)
	CountByCategory(ctx context.Context, agentID string) (map[string]uint64, error)
	FindLowConfidence(ctx context.Context, agentID string, threshold float64) ([]Belief, error)
	SearchByText(ctx context.Context, agentID string, q string) ([]Belief, error)
	FindSimilar(ctx context.Context, statement, agentID string, threshold float64, k int, similarity BeliefSimilarityFunc) ([]Belief, error)
	GetMemoryHealth(ctx context.Context, agentID string) (*MemoryHealth, error)

	CreateConflict(ctx context.Context, c *BeliefConflict) error
	ResolveConflict(ctx context.Context, id string, strategy ResolutionStrategy, notes string) error
	UnresolvedConflicts(ctx context.Context, agentID string) ([]BeliefConflict, error)
}

// RelationshipStore persists typed, temporal BeliefRelationships and
// provides the graph traversal/aggregation operations over them.
type RelationshipStore interface {
	CreateRelationship(ctx context.Context, sourceID, targetID string, typ RelationshipType, strength float64, agentID string, metadata map[string]string) (*BeliefRelationship, error)
	CreateTemporal(ctx context.Context, sourceID, targetID string, typ RelationshipType, strength float64, agentID string, effectiveFrom, effectiveUntil *time.Time, metadata map[string]string) (*BeliefRelationship, error)
	DeprecateBeliefWith(ctx context.Context, oldID, newID, reason, agentID string) (*BeliefRelationship, error)

	FindByID(ctx context.Context, id string) (*BeliefRelationship, error)
	FindByBelief(ctx context.Context, beliefID, agentID string) ([]BeliefRelationship, error)
	FindOutgoing(ctx context.Context, beliefID, agentID string) ([]BeliefRelationship, error)
	FindIncoming(ctx context.Context, beliefID, agentID string) ([]BeliefRelationship, error)
	FindByType(ctx context.Context, agentID string, typ RelationshipType) ([]BeliefRelationship, error)
	FindBetween(ctx context.Context, sourceID, targetID, agentID string) ([]BeliefRelationship, error)
	FindDeprecating(ctx context.Context, agentID string) ([]BeliefRelationship, error)
	FindCurrentlyEffective(ctx context.Context, agentID string, now time.Time) ([]BeliefRelationship, error)
	FindHighStrength(ctx context.Context, agentID string, threshold float64) ([]BeliefRelationship, error)

	Update(ctx context.Context, r *BeliefRelationship) error
	Deactivate(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error

	FindRelatedBeliefIds(ctx context.Context, startID, agentID string, maxDepth int) ([]string, error)
	FindShortestPath(ctx context.Context, sourceID, targetID, agentID string) ([]BeliefRelationship, error)
	FindBeliefClusters(ctx context.Context, agentID string, threshold float64) (map[int][]string, error)
	FindDeprecationChain(ctx context.Context, beliefID, agentID string) ([]string, error)
	FindPotentialConflicts(ctx context.Context, agentID string) ([][2]string, error)

	GetComprehensiveGraphStatistics(ctx context.Context, agentID string) (*GraphStatistics, error)
	ValidateGraphStructure(ctx context.Context, agentID string) ([]string, error)

	CleanupOlderThan(ctx context.Context, agentID string, olderThan time.Time) (int64, error)
	ApplyEdgeDecay(ctx context.Context, agentID string, factor float64, notTraversedSince time.Time) (int64, error)
	PruneGraph(ctx context.Context, agentID string, minStrength float64, staleBefore time.Time) (int64, error)
}
