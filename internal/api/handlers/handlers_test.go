package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/agentlock"
	"github.com/synapsed/synapse/internal/belief"
	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/embedding"
	"github.com/synapsed/synapse/internal/extraction"
	"github.com/synapsed/synapse/internal/ingestion"
)

type fakeMemoryStore struct {
	records map[string]domain.MemoryRecord
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{records: map[string]domain.MemoryRecord{}}
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
	return nil, nil
}
func (f *fakeMemoryStore) ListByAgent(ctx context.Context, agentID string, limit int, cursor string) ([]domain.MemoryRecord, string, error) {
	return nil, "", nil
}
func (f *fakeMemoryStore) Delete(ctx context.Context, id string) error { delete(f.records, id); return nil }
func (f *fakeMemoryStore) Update(ctx context.Context, m *domain.MemoryRecord) error {
	f.records[m.ID] = *m
	return nil
}
func (f *fakeMemoryStore) SearchSimilar(ctx context.Context, queryText string, queryVector []float32, k int, agentID string, threshold *float64) ([]domain.SimilarityMatch, error) {
	var out []domain.SimilarityMatch
	for _, m := range f.records {
		if m.AgentID != agentID {
			continue
		}
		out = append(out, domain.SimilarityMatch{Memory: m, Similarity: 0.9})
	}
	return out, nil
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
func (f *fakeMemoryStore) ListDistinctAgentIDs(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeMemoryStore) Archive(ctx context.Context, ids []string, reason string) error { return nil }
func (f *fakeMemoryStore) Restore(ctx context.Context, ids []string) error                { return nil }
func (f *fakeMemoryStore) ListArchived(ctx context.Context, agentID string) ([]domain.MemoryRecord, error) {
	return nil, nil
}

type fakeBeliefStore struct {
	beliefs map[string]domain.Belief
}

func newFakeBeliefStore() *fakeBeliefStore {
	return &fakeBeliefStore{beliefs: map[string]domain.Belief{}}
}

func (f *fakeBeliefStore) Put(ctx context.Context, b *domain.Belief) error {
	if b.ID == "" {
		b.ID = "belief-" + b.Statement
	}
	f.beliefs[b.ID] = *b
	return nil
}
func (f *fakeBeliefStore) Get(ctx context.Context, id string) (*domain.Belief, error) {
	b, ok := f.beliefs[id]
	if !ok {
		return nil, assert.AnError
	}
	return &b, nil
}
func (f *fakeBeliefStore) GetMany(ctx context.Context, ids []string) ([]domain.Belief, error) { return nil, nil }
func (f *fakeBeliefStore) Update(ctx context.Context, b *domain.Belief) error {
	f.beliefs[b.ID] = *b
	return nil
}
func (f *fakeBeliefStore) StoreBatch(ctx context.Context, beliefs []domain.Belief) ([]domain.Belief, error) {
	return beliefs, nil
}
func (f *fakeBeliefStore) FindByAgentAndCategory(ctx context.Context, agentID, category string, onlyActive bool) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefStore) FindAllByAgent(ctx context.Context, agentID string, includeInactive bool) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefStore) CountByAgent(ctx context.Context, agentID string, includeInactive bool) (uint64, error) {
	n := uint64(0)
	for _, b := range f.beliefs {
		if b.AgentID == agentID {
			n++
		}
	}
	return n, nil
}
func (f *fakeBeliefStore) CountByCategory(ctx context.Context, agentID string) (map[string]uint64, error) {
	return map[string]uint64{}, nil
}
func (f *fakeBeliefStore) FindLowConfidence(ctx context.Context, agentID string, threshold float64) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefStore) SearchByText(ctx context.Context, agentID string, q string) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefStore) FindSimilar(ctx context.Context, statement, agentID string, threshold float64, k int, similarity domain.BeliefSimilarityFunc) ([]domain.Belief, error) {
	return nil, nil
}
func (f *fakeBeliefStore) GetMemoryHealth(ctx context.Context, agentID string) (*domain.MemoryHealth, error) {
	return &domain.MemoryHealth{AgentID: agentID}, nil
}
func (f *fakeBeliefStore) CreateConflict(ctx context.Context, c *domain.BeliefConflict) error { return nil }
func (f *fakeBeliefStore) ResolveConflict(ctx context.Context, id string, strategy domain.ResolutionStrategy, notes string) error {
	return nil
}
func (f *fakeBeliefStore) UnresolvedConflicts(ctx context.Context, agentID string) ([]domain.BeliefConflict, error) {
	return nil, nil
}

type fakeRelationshipStore struct{}

func (f *fakeRelationshipStore) CreateRelationship(ctx context.Context, sourceID, targetID string, typ domain.RelationshipType, strength float64, agentID string, metadata map[string]string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) CreateTemporal(ctx context.Context, sourceID, targetID string, typ domain.RelationshipType, strength float64, agentID string, effectiveFrom, effectiveUntil *time.Time, metadata map[string]string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) DeprecateBeliefWith(ctx context.Context, oldID, newID, reason, agentID string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindByID(ctx context.Context, id string) (*domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindByBelief(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindOutgoing(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindIncoming(ctx context.Context, beliefID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindByType(ctx context.Context, agentID string, typ domain.RelationshipType) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindBetween(ctx context.Context, sourceID, targetID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindDeprecating(ctx context.Context, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindCurrentlyEffective(ctx context.Context, agentID string, now time.Time) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindHighStrength(ctx context.Context, agentID string, threshold float64) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) Update(ctx context.Context, r *domain.BeliefRelationship) error { return nil }
func (f *fakeRelationshipStore) Deactivate(ctx context.Context, id string) error                { return nil }
func (f *fakeRelationshipStore) Reactivate(ctx context.Context, id string) error                { return nil }
func (f *fakeRelationshipStore) Delete(ctx context.Context, id string) error                    { return nil }
func (f *fakeRelationshipStore) FindRelatedBeliefIds(ctx context.Context, startID, agentID string, maxDepth int) ([]string, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindShortestPath(ctx context.Context, sourceID, targetID, agentID string) ([]domain.BeliefRelationship, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindBeliefClusters(ctx context.Context, agentID string, threshold float64) (map[int][]string, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindDeprecationChain(ctx context.Context, beliefID, agentID string) ([]string, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) FindPotentialConflicts(ctx context.Context, agentID string) ([][2]string, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) GetComprehensiveGraphStatistics(ctx context.Context, agentID string) (*domain.GraphStatistics, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) ValidateGraphStructure(ctx context.Context, agentID string) ([]string, error) {
	return nil, nil
}
func (f *fakeRelationshipStore) CleanupOlderThan(ctx context.Context, agentID string, olderThan time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeRelationshipStore) ApplyEdgeDecay(ctx context.Context, agentID string, factor float64, notTraversedSince time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeRelationshipStore) PruneGraph(ctx context.Context, agentID string, minStrength float64, staleBefore time.Time) (int64, error) {
	return 0, nil
}

func newTestIngestionHandler() (*IngestionHandler, *fakeMemoryStore, *fakeBeliefStore) {
	logger := zap.NewNop()
	memories := newFakeMemoryStore()
	beliefs := newFakeBeliefStore()
	rels := &fakeRelationshipStore{}
	provider := extraction.NewMockProvider()

	resolutionFor := func(category string) domain.ResolutionStrategy { return domain.ResolutionKeepBothFlag }
	beliefEngine := belief.NewEngine(beliefs, rels, provider, logger, 0.7, 0.3, 0.2, resolutionFor)
	pipeline := ingestion.NewPipeline(memories, provider, beliefEngine, agentlock.NewRegistry(), nil, logger)

	return NewIngestionHandler(pipeline, memories, beliefs, embedding.NewMockEmbedder(), logger), memories, beliefs
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestIngestStoresMemoryAndReturnsCreated(t *testing.T) {
	h, memories, _ := newTestIngestionHandler()

	rec := doRequest(t, h.Ingest, http.MethodPost, "/ingest", map[string]any{
		"agentId": "agent-1",
		"content": "I prefer dark mode",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var result ingestion.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.MemoryID)
	assert.Equal(t, "ok", result.Status)
	assert.Contains(t, memories.records, result.MemoryID)
}

func TestIngestRejectsMissingContent(t *testing.T) {
	h, _, _ := newTestIngestionHandler()

	rec := doRequest(t, h.Ingest, http.MethodPost, "/ingest", map[string]any{
		"agentId": "agent-1",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDryRunDoesNotPersist(t *testing.T) {
	h, memories, _ := newTestIngestionHandler()

	rec := doRequest(t, h.DryRun, http.MethodPost, "/dry-run", map[string]any{
		"agentId": "agent-1",
		"content": "The sky is blue",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, memories.records)
}

func TestValidateReportsFieldErrorsForBadRequest(t *testing.T) {
	h, _, _ := newTestIngestionHandler()

	rec := doRequest(t, h.Validate, http.MethodPost, "/validate", map[string]any{
		"content": "missing agent id",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["valid"])
}

func TestSearchReturnsMatchesForAgent(t *testing.T) {
	h, memories, _ := newTestIngestionHandler()
	require.NoError(t, memories.Put(context.Background(), &domain.MemoryRecord{
		ID: "m1", AgentID: "agent-1", Content: "likes coffee",
	}))

	rec := doRequest(t, h.Search, http.MethodPost, "/search", map[string]any{
		"agentId": "agent-1",
		"query":   "coffee",
		"limit":   10,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 1)
	assert.Equal(t, "m1", out[0]["memoryId"])
}

func TestStatisticsRequiresAgentIDQueryParam(t *testing.T) {
	h, _, _ := newTestIngestionHandler()

	req := httptest.NewRequest(http.MethodGet, "/statistics", nil)
	rec := httptest.NewRecorder()
	h.Statistics(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatisticsReturnsCountsForAgent(t *testing.T) {
	h, memories, beliefs := newTestIngestionHandler()
	require.NoError(t, memories.Put(context.Background(), &domain.MemoryRecord{ID: "m1", AgentID: "agent-1"}))
	require.NoError(t, beliefs.Put(context.Background(), &domain.Belief{ID: "b1", AgentID: "agent-1"}))

	req := httptest.NewRequest(http.MethodGet, "/statistics?agentId=agent-1", nil)
	rec := httptest.NewRecorder()
	h.Statistics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "agent-1", body["agentId"])
	assert.EqualValues(t, 1, body["memoryCount"])
	assert.EqualValues(t, 1, body["beliefCount"])
}
