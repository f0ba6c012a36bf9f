package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/view"
)

type graphRelFake struct {
	fakeRelationshipStore
	decayCalls  int
	pruneCalls  int
	decayResult int64
	pruneResult int64
}

func (f *graphRelFake) ApplyEdgeDecay(ctx context.Context, agentID string, factor float64, notTraversedSince time.Time) (int64, error) {
	f.decayCalls++
	return f.decayResult, nil
}

func (f *graphRelFake) PruneGraph(ctx context.Context, agentID string, minStrength float64, staleBefore time.Time) (int64, error) {
	f.pruneCalls++
	return f.pruneResult, nil
}

func newTestGraphRouter(rels domain.RelationshipStore, beliefs domain.BeliefStore) *chi.Mux {
	similarity := func(ctx context.Context, a, b string) (float64, error) { return 0, nil }
	h := NewGraphHandler(rels, beliefs, view.NewAssembler(beliefs, rels, 1000), similarity, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/agents/{agentId}", func(r chi.Router) {
		r.Post("/decay", h.Decay)
		r.Post("/prune", h.Prune)
		r.Get("/memory-health", h.MemoryHealth)
	})
	return r
}

func TestDecayAppliesFactorAndReturnsCount(t *testing.T) {
	rels := &graphRelFake{decayResult: 7}
	beliefs := newFakeBeliefStore()
	router := newTestGraphRouter(rels, beliefs)

	req := httptest.NewRequest(http.MethodPost, "/agents/agent-1/decay?factor=0.9&notTraversedSinceDays=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, rels.decayCalls)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 7, body["decayedCount"])
}

func TestPruneReturnsPrunedCount(t *testing.T) {
	rels := &graphRelFake{pruneResult: 3}
	beliefs := newFakeBeliefStore()
	router := newTestGraphRouter(rels, beliefs)

	req := httptest.NewRequest(http.MethodPost, "/agents/agent-1/prune?minStrength=0.1&staleSinceDays=30", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, rels.pruneCalls)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body["prunedCount"])
}

func TestMemoryHealthReturnsRollupForAgent(t *testing.T) {
	rels := &graphRelFake{}
	beliefs := newFakeBeliefStore()
	require.NoError(t, beliefs.Put(context.Background(), &domain.Belief{ID: "b1", AgentID: "agent-1"}))
	router := newTestGraphRouter(rels, beliefs)

	req := httptest.NewRequest(http.MethodGet, "/agents/agent-1/memory-health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health domain.MemoryHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "agent-1", health.AgentID)
}
