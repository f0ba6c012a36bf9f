package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/api/validate"
	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/view"
)

// GraphHandler serves the /api/v1/agents/{agentId}/belief-relationships routes.
type GraphHandler struct {
	rels       domain.RelationshipStore
	beliefs    domain.BeliefStore
	snapshot   *view.Assembler
	similarity domain.BeliefSimilarityFunc
	logger     *zap.Logger
}

func NewGraphHandler(rels domain.RelationshipStore, beliefs domain.BeliefStore, snapshot *view.Assembler, similarity domain.BeliefSimilarityFunc, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{rels: rels, beliefs: beliefs, snapshot: snapshot, similarity: similarity, logger: logger}
}

func agentIDFrom(r *http.Request) string { return chi.URLParam(r, "agentId") }

type createRelationshipRequest struct {
	SourceBeliefID string                 `json:"sourceBeliefId" validate:"required"`
	TargetBeliefID string                 `json:"targetBeliefId" validate:"required"`
	Type           domain.RelationshipType `json:"type" validate:"required"`
	Strength       float64                `json:"strength" validate:"min=0,max=1"`
	Metadata       map[string]string      `json:"metadata,omitempty"`
}

// Create handles POST /.
func (h *GraphHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !domain.ValidRelationshipType(string(req.Type)) {
		writeError(w, h.logger, apperr.New(apperr.InvalidInput, "unknown relationship type"))
		return
	}

	rel, err := h.rels.CreateRelationship(r.Context(), req.SourceBeliefID, req.TargetBeliefID, req.Type, req.Strength, agentIDFrom(r), req.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

type createTemporalRequest struct {
	createRelationshipRequest
	EffectiveFrom  *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveUntil *time.Time `json:"effectiveUntil,omitempty"`
}

// CreateTemporal handles POST /temporal.
func (h *GraphHandler) CreateTemporal(w http.ResponseWriter, r *http.Request) {
	var req createTemporalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !domain.ValidRelationshipType(string(req.Type)) {
		writeError(w, h.logger, apperr.New(apperr.InvalidInput, "unknown relationship type"))
		return
	}
	if req.EffectiveFrom != nil && req.EffectiveUntil != nil && req.EffectiveFrom.After(*req.EffectiveUntil) {
		writeError(w, h.logger, apperr.New(apperr.TemporalViolation, "effectiveFrom must not be after effectiveUntil"))
		return
	}

	rel, err := h.rels.CreateTemporal(r.Context(), req.SourceBeliefID, req.TargetBeliefID, req.Type, req.Strength, agentIDFrom(r), req.EffectiveFrom, req.EffectiveUntil, req.Metadata)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

type deprecateRequest struct {
	OldBeliefID string `json:"oldBeliefId" validate:"required"`
	NewBeliefID string `json:"newBeliefId" validate:"required"`
	Reason      string `json:"reason"`
}

// Deprecate handles POST /deprecate.
func (h *GraphHandler) Deprecate(w http.ResponseWriter, r *http.Request) {
	var req deprecateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rel, err := h.rels.DeprecateBeliefWith(r.Context(), req.OldBeliefID, req.NewBeliefID, req.Reason, agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// GetByID handles GET /{id}.
func (h *GraphHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	rel, err := h.rels.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

type updateRelationshipRequest struct {
	Strength *float64           `json:"strength,omitempty"`
	Metadata map[string]string  `json:"metadata,omitempty"`
}

// Update handles PUT /{id}.
func (h *GraphHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rel, err := h.rels.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateRelationshipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Strength != nil {
		rel.Strength = *req.Strength
	}
	if req.Metadata != nil {
		rel.Metadata = req.Metadata
	}

	if err := h.rels.Update(r.Context(), rel); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// Deactivate handles PUT /{id}/deactivate.
func (h *GraphHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.rels.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reactivate handles PUT /{id}/reactivate.
func (h *GraphHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.rels.Reactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /{id}.
func (h *GraphHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.rels.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ByBelief handles GET /belief/{id}.
func (h *GraphHandler) ByBelief(w http.ResponseWriter, r *http.Request) {
	rels, err := h.rels.FindByBelief(r.Context(), chi.URLParam(r, "id"), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// Outgoing handles GET /belief/{id}/outgoing.
func (h *GraphHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	rels, err := h.rels.FindOutgoing(r.Context(), chi.URLParam(r, "id"), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// Incoming handles GET /belief/{id}/incoming.
func (h *GraphHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	rels, err := h.rels.FindIncoming(r.Context(), chi.URLParam(r, "id"), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// Related handles GET /belief/{id}/related?maxDepth=.
func (h *GraphHandler) Related(w http.ResponseWriter, r *http.Request) {
	maxDepth := 3
	if v := r.URL.Query().Get("maxDepth"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxDepth = n
		}
	}
	ids, err := h.rels.FindRelatedBeliefIds(r.Context(), chi.URLParam(r, "id"), agentIDFrom(r), maxDepth)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// Superseding handles GET /belief/{id}/superseding: edges where a
// deprecating relationship targets this belief, i.e. what replaced it.
func (h *GraphHandler) Superseding(w http.ResponseWriter, r *http.Request) {
	incoming, err := h.rels.FindIncoming(r.Context(), chi.URLParam(r, "id"), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var out []domain.BeliefRelationship
	for _, rel := range incoming {
		if rel.Type.IsDeprecating() {
			out = append(out, rel)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// DeprecationChain handles GET /belief/{id}/deprecation-chain.
func (h *GraphHandler) DeprecationChain(w http.ResponseWriter, r *http.Request) {
	chain, err := h.rels.FindDeprecationChain(r.Context(), chi.URLParam(r, "id"), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

// ByType handles GET /type/{type}.
func (h *GraphHandler) ByType(w http.ResponseWriter, r *http.Request) {
	typ := domain.RelationshipType(chi.URLParam(r, "type"))
	if !domain.ValidRelationshipType(string(typ)) {
		writeError(w, h.logger, apperr.New(apperr.InvalidInput, "unknown relationship type"))
		return
	}
	rels, err := h.rels.FindByType(r.Context(), agentIDFrom(r), typ)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// Between handles GET /between/{src}/{tgt}.
func (h *GraphHandler) Between(w http.ResponseWriter, r *http.Request) {
	rels, err := h.rels.FindBetween(r.Context(), chi.URLParam(r, "src"), chi.URLParam(r, "tgt"), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// Deprecated handles GET /deprecated.
func (h *GraphHandler) Deprecated(w http.ResponseWriter, r *http.Request) {
	rels, err := h.rels.FindDeprecating(r.Context(), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// EfficientStatistics handles GET /efficient-statistics.
func (h *GraphHandler) EfficientStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rels.GetComprehensiveGraphStatistics(r.Context(), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// EfficientValidation handles GET /efficient-validation.
func (h *GraphHandler) EfficientValidation(w http.ResponseWriter, r *http.Request) {
	issues, err := h.rels.ValidateGraphStructure(r.Context(), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

// SnapshotGraph handles GET /snapshot-graph?includeInactive=.
func (h *GraphHandler) SnapshotGraph(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	snap, err := h.snapshot.CreateSnapshot(r.Context(), agentIDFrom(r), includeInactive)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type filteredSnapshotRequest struct {
	BeliefIDs []string                 `json:"beliefIds,omitempty"`
	Types     []domain.RelationshipType `json:"types,omitempty"`
}

// FilteredSnapshot handles POST /filtered-snapshot?maxBeliefs=.
func (h *GraphHandler) FilteredSnapshot(w http.ResponseWriter, r *http.Request) {
	var req filteredSnapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	cap := 0
	if v := r.URL.Query().Get("maxBeliefs"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cap = n
		}
	}

	snap, err := h.snapshot.CreateFilteredSnapshot(r.Context(), agentIDFrom(r), req.BeliefIDs, req.Types, cap)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Clusters handles GET /clusters?strengthThreshold=.
func (h *GraphHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	threshold := 0.5
	if v := r.URL.Query().Get("strengthThreshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = f
		}
	}
	clusters, err := h.rels.FindBeliefClusters(r.Context(), agentIDFrom(r), threshold)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, clusters)
}

type similarBeliefsRequest struct {
	Statement string  `json:"statement" validate:"required"`
	Threshold float64 `json:"threshold"`
	K         int     `json:"k"`
}

// SimilarBeliefs handles POST /similar: finds beliefs whose statement
// is close to the given one, ranked by descending similarity.
func (h *GraphHandler) SimilarBeliefs(w http.ResponseWriter, r *http.Request) {
	var req similarBeliefsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	k := req.K
	if k <= 0 {
		k = 10
	}

	beliefs, err := h.beliefs.FindSimilar(r.Context(), req.Statement, agentIDFrom(r), req.Threshold, k, h.similarity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, beliefs)
}

// Conflicts handles GET /conflicts.
func (h *GraphHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.beliefs.UnresolvedConflicts(r.Context(), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conflicts)
}

// Path handles GET /path/{src}/{tgt}.
func (h *GraphHandler) Path(w http.ResponseWriter, r *http.Request) {
	path, err := h.rels.FindShortestPath(r.Context(), chi.URLParam(r, "src"), chi.URLParam(r, "tgt"), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

// Export handles GET /export?format=json|text.
func (h *GraphHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot.CreateSnapshot(r.Context(), agentIDFrom(r), true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		for _, b := range snap.Beliefs {
			_, _ = w.Write([]byte(b.ID + "\t" + b.Statement + "\n"))
		}
		for _, rel := range snap.Relationships {
			_, _ = w.Write([]byte(rel.SourceBeliefID + " --" + string(rel.Type) + "--> " + rel.TargetBeliefID + "\n"))
		}
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Decay handles POST /decay?factor=&notTraversedSinceDays=. Exponentially
// weakens edges untouched since the cutoff, the graph analogue of the
// memory-level forgetting engine.
func (h *GraphHandler) Decay(w http.ResponseWriter, r *http.Request) {
	factor := 0.95
	if v := r.URL.Query().Get("factor"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			factor = f
		}
	}
	days := 30
	if v := r.URL.Query().Get("notTraversedSinceDays"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := h.rels.ApplyEdgeDecay(r.Context(), agentIDFrom(r), factor, cutoff)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"decayedCount": n})
}

// Prune handles POST /prune?minStrength=&staleSinceDays=. Deactivates
// edges that have decayed below minStrength or gone untouched too long.
func (h *GraphHandler) Prune(w http.ResponseWriter, r *http.Request) {
	minStrength := 0.05
	if v := r.URL.Query().Get("minStrength"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			minStrength = f
		}
	}
	days := 180
	if v := r.URL.Query().Get("staleSinceDays"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	staleBefore := time.Now().AddDate(0, 0, -days)
	n, err := h.rels.PruneGraph(r.Context(), agentIDFrom(r), minStrength, staleBefore)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"prunedCount": n})
}

// MemoryHealth handles GET /memory-health.
func (h *GraphHandler) MemoryHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.beliefs.GetMemoryHealth(r.Context(), agentIDFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// Cleanup handles DELETE /cleanup?olderThanDays=.
func (h *GraphHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := 90
	if v := r.URL.Query().Get("olderThanDays"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := h.rels.CleanupOlderThan(r.Context(), agentIDFrom(r), cutoff)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deletedCount": n})
}
