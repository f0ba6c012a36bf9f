package view

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/domain"
)

type fakeBeliefs struct {
	byAgent map[string][]domain.Belief
	byID    map[string]domain.Belief
}

func newFakeBeliefs(beliefs ...domain.Belief) *fakeBeliefs {
	f := &fakeBeliefs{byAgent: map[string][]domain.Belief{}, byID: map[string]domain.Belief{}}
	for _, b := range beliefs {
		f.byAgent[b.AgentID] = append(f.byAgent[b.AgentID], b)
		f.byID[b.ID] = b
	}
	return f
}

func (f *fakeBeliefs) Put(ctx context.Context, b *domain.Belief) error               { return nil }
func (f *fakeBeliefs) Get(ctx context.Context, id string) (*domain.Belief, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	return &b, nil
}
func (f *fakeBeliefs) GetMany(ctx context.Context, ids []string) ([]domain.Belief, error) {
	var out []domain.Belief
	for _, id := range ids {
		if b, ok := f.byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}
func (f *fakeBeliefs) Update(ctx context.Context, b *domain.Belief) error { return nil }
func (f *fakeBeliefs) StoreBatch(ctx context.Context, beliefs []domain.Belief) ([]domain.Belief, error) {
	return beliefs, nil
}
func (f *fakeBeliefs) FindByAgentAndCategory(ctx context.Context, agentID, category string, onlyActive bool) ([]domain.Belief, error) {
	return f.byAgent[agentID], nil
}
func (f *fakeBeliefs) FindAllByAgent(ctx context.Context, agentID string, includeInactive bool) ([]domain.Belief, error) {
	return f.byAgent[agentID], nil
}
func (f *fakeBeliefs) CountByAgent(ctx context.Context, agentID string, includeInactive bool) (uint64, error) {
	return uint64(len(f.byAgent[agentID])), nil
}
func (f *fakeBeliefs) CountByCategory(ctx context.Context, agentID string) (map[string]uint64, error) {
	return nil, nil
}
func (f *fakeBeliefs) FindLowConfidence(ctx context.Context, agentID string, threshold float64) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefs) SearchByText(ctx context.Context, agentID string, q string) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefs) FindSimilar(ctx context.Context, statement, agentID string, threshold float64, k int, similarity domain.BeliefSimilarityFunc) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefs) GetMemoryHealth(ctx context.Context, agentID string) (*domain.MemoryHealth, error) {
	return &domain.MemoryHealth{AgentID: agentID}, nil
}
func (f *fakeBeliefs) CreateConflict(ctx context.Context, c *domain.BeliefConflict) error { return nil }
func (f *fakeBeliefs) ResolveConflict(ctx context.Context, id string, strategy domain.ResolutionStrategy, notes string) error {
	return nil
}
func (f *fakeBeliefs) UnresolvedConflicts(ctx context.Context, agentID string) ([]domain.BeliefConflict, error) {
	return nil, nil
}

type fakeRelationships struct {
	byBelief map[string][]domain.BeliefRelationship
}

func newFakeRelationships() *fakeRelationships {
	return &fakeRelationships{byBelief: map[string][]domain.BeliefRelationship{}}
}

func (f *fakeRelationships) add(r domain.BeliefRelationship) {
	f.byBelief[r.SourceBeliefID] = append(f.byBelief[r.SourceBeliefID], r)
	f.byBelief[r.TargetBeliefID] = append(f.byBelief[r.TargetBeliefID], r)
}

func (f *fakeRelationships) CreateRelationship(ctx context.Context, sourceID, targetID string, typ domain.RelationshipType, strength float64, agentID string, metadata map[string]string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) CreateTemporal(ctx context.Context, sourceID, targetID string, typ domain.RelationshipType, strength float64, agentID string, effectiveFrom, effectiveUntil *time.Time, metadata map[string]string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) DeprecateBeliefWith(ctx context.Context, oldID, newID, reason, agentID string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindByID(ctx context.Context, id string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindByBelief(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	return f.byBelief[beliefID], nil
}
func (f *fakeRelationships) FindOutgoing(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindIncoming(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindByType(ctx context.Context, agentID string, typ domain.RelationshipType) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindBetween(ctx context.Context, sourceID, targetID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindDeprecating(ctx context.Context, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindCurrentlyEffective(ctx context.Context, agentID string, now time.Time) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindHighStrength(ctx context.Context, agentID string, threshold float64) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) Update(ctx context.Context, r *domain.BeliefRelationship) error { return nil }
func (f *fakeRelationships) Deactivate(ctx context.Context, id string) error                { return nil }
func (f *fakeRelationships) Reactivate(ctx context.Context, id string) error                { return nil }
func (f *fakeRelationships) Delete(ctx context.Context, id string) error                    { return nil }
func (f *fakeRelationships) FindRelatedBeliefIds(ctx context.Context, startID, agentID string, maxDepth int) ([]string, error) {
	return nil, nil
}
func (f *fakeRelationships) FindShortestPath(ctx context.Context, sourceID, targetID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationships) FindBeliefClusters(ctx context.Context, agentID string, threshold float64) (map[int][]string, error) {
	return nil, nil
}
func (f *fakeRelationships) FindDeprecationChain(ctx context.Context, beliefID, agentID string) ([]string, error) {
	return nil, nil
}
func (f *fakeRelationships) FindPotentialConflicts(ctx context.Context, agentID string) ([][2]string, error) {
	return nil, nil
}
func (f *fakeRelationships) GetComprehensiveGraphStatistics(ctx context.Context, agentID string) (*domain.GraphStatistics, error) {
	return nil, nil
}
func (f *fakeRelationships) ValidateGraphStructure(ctx context.Context, agentID string) ([]string, error) {
	return nil, nil
}
func (f *fakeRelationships) CleanupOlderThan(ctx context.Context, agentID string, olderThan time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeRelationships) ApplyEdgeDecay(ctx context.Context, agentID string, factor float64, notTraversedSince time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeRelationships) PruneGraph(ctx context.Context, agentID string, minStrength float64, staleBefore time.Time) (int64, error) {
	return 0, nil
}

func TestCreateSnapshotRefusesOverCap(t *testing.T) {
	beliefs := make([]domain.Belief, 5)
	for i := range beliefs {
		beliefs[i] = domain.Belief{ID: string(rune('a' + i)), AgentID: "agent-1", Active: true}
	}
	assembler := NewAssembler(newFakeBeliefs(beliefs...), newFakeRelationships(), 3)

	_, err := assembler.CreateSnapshot(context.Background(), "agent-1", false)
	require.Error(t, err)
	assert.Equal(t, apperr.TraversalLimitExceeded, apperr.KindOf(err))
}

func TestCreateSnapshotWithinCapIncludesRelationships(t *testing.T) {
	b1 := domain.Belief{ID: "b1", AgentID: "agent-1", Active: true}
	b2 := domain.Belief{ID: "b2", AgentID: "agent-1", Active: true}
	rels := newFakeRelationships()
	rels.add(domain.BeliefRelationship{ID: "r1", SourceBeliefID: "b1", TargetBeliefID: "b2", Type: domain.RelSupports, Active: true})

	assembler := NewAssembler(newFakeBeliefs(b1, b2), rels, 10)

	snap, err := assembler.CreateSnapshot(context.Background(), "agent-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.BeliefCount())
	assert.Equal(t, 1, snap.RelationshipCount())
	assert.False(t, snap.Truncated)
}

func TestCreateFilteredSnapshotTruncatesAndMarksFlag(t *testing.T) {
	beliefs := make([]domain.Belief, 5)
	for i := range beliefs {
		beliefs[i] = domain.Belief{ID: string(rune('a' + i)), AgentID: "agent-1", Active: true}
	}
	assembler := NewAssembler(newFakeBeliefs(beliefs...), newFakeRelationships(), 10)

	snap, err := assembler.CreateFilteredSnapshot(context.Background(), "agent-1", nil, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.BeliefCount())
	assert.True(t, snap.Truncated)
}
