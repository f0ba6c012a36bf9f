package domain

import "time"

// RelationshipType is a closed enumeration of belief-graph edge kinds.
type RelationshipType string

const (
	RelSupports    RelationshipType = "SUPPORTS"
	RelContradicts RelationshipType = "CONTRADICTS"
	RelRefines     RelationshipType = "REFINES"
	RelImplies     RelationshipType = "IMPLIES"
	RelSimilarTo   RelationshipType = "SIMILAR_TO"
	RelDerivedFrom RelationshipType = "DERIVED_FROM"
	RelRelatesTo   RelationshipType = "RELATES_TO"
	RelSupersedes  RelationshipType = "SUPERSEDES"
	RelUpdates     RelationshipType = "UPDATES"
	RelDeprecates  RelationshipType = "DEPRECATES"
	RelReplaces    RelationshipType = "REPLACES"
)

// ValidRelationshipType reports whether r is one of the closed set.
func ValidRelationshipType(r string) bool {
	switch RelationshipType(r) {
	case RelSupports, RelContradicts, RelRefines, RelImplies, RelSimilarTo,
		RelDerivedFrom, RelRelatesTo, RelSupersedes, RelUpdates, RelDeprecates, RelReplaces:
		return true
	}
	return false
}

// IsTemporal reports whether edges of this type are expected to carry
// effective-from/effective-until bounds. All relationship types may in
// practice carry temporal bounds; this predicate flags the ones where a
// caller should default to supplying them.
func (r RelationshipType) IsTemporal() bool {
	switch r {
	case RelSupersedes, RelUpdates, RelDeprecates, RelReplaces:
		return true
	default:
		return false
	}
}

// IsDeprecating reports whether this edge type marks its target as
// superseded by its source.
func (r RelationshipType) IsDeprecating() bool {
	switch r {
	case RelSupersedes, RelUpdates, RelDeprecates, RelReplaces:
		return true
	default:
		return false
	}
}

// DeprecatingTypes lists the relationship types IsDeprecating recognizes.
var DeprecatingTypes = []RelationshipType{RelSupersedes, RelUpdates, RelDeprecates, RelReplaces}

// BeliefRelationship is a typed, optionally temporal, directed edge
// between two beliefs of the same agent.
type BeliefRelationship struct {
	ID                string
	SourceBeliefID    string
	TargetBeliefID    string
	AgentID           string
	Type              RelationshipType
	Strength          float64
	EffectiveFrom     *time.Time
	EffectiveUntil    *time.Time
	DeprecationReason string
	Priority          int
	Active            bool
	Metadata          map[string]string
	CreatedAt         time.Time
	LastUpdated       time.Time
}

// EffectiveAt reports whether the relationship is temporally valid at t,
// treating an absent bound as unbounded on that side.
func (r *BeliefRelationship) EffectiveAt(t time.Time) bool {
	if r.EffectiveFrom != nil && t.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && t.After(*r.EffectiveUntil) {
		return false
	}
	return true
}

// GraphStatistics is the result of a single aggregation pass over an
// agent's belief graph, computed without materializing the full graph.
type GraphStatistics struct {
	BeliefCount       int
	ActiveBeliefCount int
	EdgeCountByType   map[RelationshipType]int
	AverageStrength   float64
	DeprecatedCount   int
	IsolatedBeliefs   int
	MaxFanOut         int
	Density           float64
}

// BeliefCluster is a connected component of the belief graph restricted
// to edges at or above a strength threshold.
type BeliefCluster struct {
	ID        int
	BeliefIDs map[string]struct{}
}
