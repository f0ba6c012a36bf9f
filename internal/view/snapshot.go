// Package view assembles the KnowledgeGraphView (C9): a bounded,
// read-only snapshot of an agent's belief graph for export/REST. It
// owns no queries of its own beyond what it needs to bound the result —
// every expensive traversal lives on the stores.
package view

import (
	"context"

	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/domain"
)

// Assembler builds KnowledgeGraphSnapshots from the belief and
// relationship stores.
type Assembler struct {
	beliefs domain.BeliefStore
	rels    domain.RelationshipStore
	cap     int
}

func NewAssembler(beliefs domain.BeliefStore, rels domain.RelationshipStore, snapshotCap int) *Assembler {
	return &Assembler{beliefs: beliefs, rels: rels, cap: snapshotCap}
}

// CreateSnapshot implements KnowledgeGraphView.createSnapshot: it
// refuses to materialize the full graph once the belief count exceeds
// the configured cap, forcing callers of large graphs onto
// CreateFilteredSnapshot instead.
func (a *Assembler) CreateSnapshot(ctx context.Context, agentID string, includeInactive bool) (*domain.KnowledgeGraphSnapshot, error) {
	count, err := a.beliefs.CountByAgent(ctx, agentID, includeInactive)
	if err != nil {
		return nil, err
	}
	if int(count) > a.cap {
		return nil, apperr.New(apperr.TraversalLimitExceeded,
			"belief count exceeds snapshot cap; use a filtered snapshot")
	}

	beliefs, err := a.beliefs.FindAllByAgent(ctx, agentID, includeInactive)
	if err != nil {
		return nil, err
	}

	rels, err := a.relationshipsAmong(ctx, agentID, beliefs, nil)
	if err != nil {
		return nil, err
	}

	return &domain.KnowledgeGraphSnapshot{
		AgentID:       agentID,
		Beliefs:       beliefs,
		Relationships: rels,
		Truncated:     false,
	}, nil
}

// CreateFilteredSnapshot implements KnowledgeGraphView.createFilteredSnapshot:
// the large-graph-safe path. When beliefIDs is non-empty only those
// beliefs (and every edge touching one of them, including edges whose
// other endpoint is outside the set) are included; when types is
// non-empty only edges of those types are included. cap bounds the
// belief count regardless of filters, and the result is marked
// Truncated when the filtered set still had to be cut down.
func (a *Assembler) CreateFilteredSnapshot(ctx context.Context, agentID string, beliefIDs []string, types []domain.RelationshipType, cap int) (*domain.KnowledgeGraphSnapshot, error) {
	if cap <= 0 {
		cap = a.cap
	}

	var beliefs []domain.Belief
	var err error
	if len(beliefIDs) > 0 {
		beliefs, err = a.beliefs.GetMany(ctx, beliefIDs)
	} else {
		beliefs, err = a.beliefs.FindAllByAgent(ctx, agentID, true)
	}
	if err != nil {
		return nil, err
	}

	truncated := false
	if len(beliefs) > cap {
		beliefs = beliefs[:cap]
		truncated = true
	}

	rels, err := a.relationshipsAmong(ctx, agentID, beliefs, types)
	if err != nil {
		return nil, err
	}

	return &domain.KnowledgeGraphSnapshot{
		AgentID:       agentID,
		Beliefs:       beliefs,
		Relationships: rels,
		Truncated:     truncated,
	}, nil
}

// relationshipsAmong collects the edges touching beliefs, optionally
// restricted to the given types, deduplicating by relationship id.
func (a *Assembler) relationshipsAmong(ctx context.Context, agentID string, beliefs []domain.Belief, types []domain.RelationshipType) ([]domain.BeliefRelationship, error) {
	typeSet := make(map[domain.RelationshipType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	seen := map[string]bool{}
	var out []domain.BeliefRelationship
	for _, b := range beliefs {
		edges, err := a.rels.FindByBelief(ctx, b.ID, agentID)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if seen[e.ID] {
				continue
			}
			if len(typeSet) > 0 && !typeSet[e.Type] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out, nil
}
