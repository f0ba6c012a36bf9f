package forgetting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/domain"
)

type fakeMemoryStore struct {
	records map[string]domain.MemoryRecord
	archived map[string]string
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{records: map[string]domain.MemoryRecord{}, archived: map[string]string{}}
}

func (f *fakeMemoryStore) Put(ctx context.Context, m *domain.MemoryRecord) error {
	f.records[m.ID] = *m
	return nil
}
func (f *fakeMemoryStore) Get(ctx context.Context, id string) (*domain.MemoryRecord, error) {
	m, ok := f.records[id]
	if !ok {
		return nil, assert.AnError
	}
	return &m, nil
}
func (f *fakeMemoryStore) GetMany(ctx context.Context, ids []string) ([]domain.MemoryRecord, error) {
	var out []domain.MemoryRecord
	for _, id := range ids {
		if m, ok := f.records[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeMemoryStore) ListByAgent(ctx context.Context, agentID string, limit int, cursor string) ([]domain.MemoryRecord, string, error) {
	var out []domain.MemoryRecord
	for _, m := range f.records {
		if m.AgentID == agentID {
			out = append(out, m)
		}
	}
	return out, "", nil
}
func (f *fakeMemoryStore) Delete(ctx context.Context, id string) error { delete(f.records, id); return nil }
func (f *fakeMemoryStore) Update(ctx context.Context, m *domain.MemoryRecord) error {
	f.records[m.ID] = *m
	return nil
}
func (f *fakeMemoryStore) SearchSimilar(ctx context.Context, queryText string, queryVector []float32, k int, agentID string, threshold *float64) ([]domain.SimilarityMatch, error) {
	return nil, nil
}
func (f *fakeMemoryStore) TouchAccess(ctx context.Context, ids []string) error { return nil }
func (f *fakeMemoryStore) CountByAgent(ctx context.Context, agentID string) (int, error) {
	n := 0
	for _, m := range f.records {
		if m.AgentID == agentID {
			n++
		}
	}
	return n, nil
}
func (f *fakeMemoryStore) ListDistinctAgentIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, m := range f.records {
		if !seen[m.AgentID] {
			seen[m.AgentID] = true
			out = append(out, m.AgentID)
		}
	}
	return out, nil
}
func (f *fakeMemoryStore) Archive(ctx context.Context, ids []string, reason string) error {
	for _, id := range ids {
		f.archived[id] = reason
		delete(f.records, id)
	}
	return nil
}
func (f *fakeMemoryStore) Restore(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.archived, id)
	}
	return nil
}
func (f *fakeMemoryStore) ListArchived(ctx context.Context, agentID string) ([]domain.MemoryRecord, error) {
	return nil, nil
}

type fakeCiter struct{ counts map[string]int }

func (f *fakeCiter) CountCitingMemory(ctx context.Context, agentID, memoryID string) (int, error) {
	return f.counts[memoryID], nil
}

func testWeights() domain.RelevanceWeights {
	return domain.RelevanceWeights{Recency: 0.4, AccessFrequency: 0.2, Importance: 0.2, BeliefSupport: 0.2}
}

func TestEvaluateWeighsAllFourFactors(t *testing.T) {
	memories := newFakeMemoryStore()
	citer := &fakeCiter{counts: map[string]int{}}
	engine := NewEngine(memories, citer, testWeights(), nil, domain.ForgettingStrategy{}, zap.NewNop())

	fresh := domain.MemoryRecord{
		ID:           "fresh",
		AgentID:      "agent-1",
		LastAccessed: time.Now(),
		Metadata:     domain.Metadata{AccessCount: 20, Importance: 1.0},
	}
	stale := domain.MemoryRecord{
		ID:           "stale",
		AgentID:      "agent-1",
		LastAccessed: time.Now().Add(-90 * 24 * time.Hour),
		Metadata:     domain.Metadata{AccessCount: 0, Importance: 0.1},
	}

	freshScore, err := engine.Evaluate(context.Background(), &fresh)
	require.NoError(t, err)
	staleScore, err := engine.Evaluate(context.Background(), &stale)
	require.NoError(t, err)

	assert.Greater(t, freshScore, staleScore)
}

func TestEvaluateIncludesBeliefSupport(t *testing.T) {
	memories := newFakeMemoryStore()
	citer := &fakeCiter{counts: map[string]int{"cited": 5, "uncited": 0}}
	engine := NewEngine(memories, citer, domain.RelevanceWeights{BeliefSupport: 1.0}, nil, domain.ForgettingStrategy{}, zap.NewNop())

	cited := domain.MemoryRecord{ID: "cited", AgentID: "agent-1", LastAccessed: time.Now()}
	uncited := domain.MemoryRecord{ID: "uncited", AgentID: "agent-1", LastAccessed: time.Now()}

	citedScore, err := engine.Evaluate(context.Background(), &cited)
	require.NoError(t, err)
	uncitedScore, err := engine.Evaluate(context.Background(), &uncited)
	require.NoError(t, err)

	assert.Equal(t, 1.0, citedScore)
	assert.Equal(t, 0.0, uncitedScore)
}

func TestPerformForgettingLowScoreArchivesBelowThreshold(t *testing.T) {
	memories := newFakeMemoryStore()
	old := domain.MemoryRecord{
		ID: "old", AgentID: "agent-1",
		LastAccessed: time.Now().Add(-365 * 24 * time.Hour),
		Metadata:     domain.Metadata{AccessCount: 0, Importance: 0},
	}
	recent := domain.MemoryRecord{
		ID: "recent", AgentID: "agent-1",
		LastAccessed: time.Now(),
		Metadata:     domain.Metadata{AccessCount: 10, Importance: 1.0},
	}
	require.NoError(t, memories.Put(context.Background(), &old))
	require.NoError(t, memories.Put(context.Background(), &recent))

	citer := &fakeCiter{counts: map[string]int{}}
	engine := NewEngine(memories, citer, testWeights(), nil, domain.ForgettingStrategy{}, zap.NewNop())

	strategy := domain.ForgettingStrategy{Kind: domain.StrategyLowScore, ScoreThreshold: 0.3}
	report, err := engine.PerformForgetting(context.Background(), strategy, "agent-1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.RemovedCount)
	assert.Contains(t, memories.archived, "old")
	assert.NotContains(t, memories.archived, "recent")
}

func TestPerformForgettingRespectsProtectionRules(t *testing.T) {
	memories := newFakeMemoryStore()
	protectedMem := domain.MemoryRecord{
		ID: "protected", AgentID: "agent-1",
		LastAccessed: time.Now().Add(-365 * 24 * time.Hour),
		Metadata:     domain.Metadata{Source: "pinned"},
	}
	require.NoError(t, memories.Put(context.Background(), &protectedMem))

	rules := []domain.ProtectionRule{
		{Name: "pinned-source", Predicate: func(m *domain.MemoryRecord) bool { return m.Metadata.Source == "pinned" }},
	}
	citer := &fakeCiter{counts: map[string]int{}}
	engine := NewEngine(memories, citer, testWeights(), rules, domain.ForgettingStrategy{}, zap.NewNop())

	strategy := domain.ForgettingStrategy{Kind: domain.StrategyLowScore, ScoreThreshold: 1.0}
	report, err := engine.PerformForgetting(context.Background(), strategy, "agent-1")
	require.NoError(t, err)

	assert.Equal(t, 0, report.RemovedCount)
	assert.NotContains(t, memories.archived, "protected")
}

func TestPerformForgettingLeastUsedRetainsTopN(t *testing.T) {
	memories := newFakeMemoryStore()
	for i := 0; i < 5; i++ {
		m := domain.MemoryRecord{
			ID:           string(rune('a' + i)),
			AgentID:      "agent-1",
			LastAccessed: time.Now().Add(-time.Duration(i) * 24 * time.Hour),
			Metadata:     domain.Metadata{AccessCount: 5 - i},
		}
		require.NoError(t, memories.Put(context.Background(), &m))
	}

	citer := &fakeCiter{counts: map[string]int{}}
	engine := NewEngine(memories, citer, testWeights(), nil, domain.ForgettingStrategy{}, zap.NewNop())

	strategy := domain.ForgettingStrategy{Kind: domain.StrategyLeastUsed, RetainCount: 2}
	report, err := engine.PerformForgetting(context.Background(), strategy, "agent-1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.RetainedCount)
	assert.Equal(t, 3, report.RemovedCount)
}

func TestPerformForgettingDryRunDoesNotArchive(t *testing.T) {
	memories := newFakeMemoryStore()
	old := domain.MemoryRecord{
		ID: "old", AgentID: "agent-1",
		LastAccessed: time.Now().Add(-365 * 24 * time.Hour),
	}
	require.NoError(t, memories.Put(context.Background(), &old))

	citer := &fakeCiter{counts: map[string]int{}}
	engine := NewEngine(memories, citer, testWeights(), nil, domain.ForgettingStrategy{}, zap.NewNop())

	strategy := domain.ForgettingStrategy{Kind: domain.StrategyLowScore, ScoreThreshold: 1.0, DryRun: true}
	report, err := engine.PerformForgetting(context.Background(), strategy, "agent-1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.RemovedCount)
	assert.Empty(t, memories.archived)
}
