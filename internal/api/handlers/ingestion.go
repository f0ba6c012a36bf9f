package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/api/validate"
	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/ingestion"
)

// IngestionHandler serves the /api/v1/memory routes.
type IngestionHandler struct {
	pipeline *ingestion.Pipeline
	memories domain.MemoryStore
	beliefs  domain.BeliefStore
	embedder ingestion.Embedder
	logger   *zap.Logger
}

func NewIngestionHandler(pipeline *ingestion.Pipeline, memories domain.MemoryStore, beliefs domain.BeliefStore, embedder ingestion.Embedder, logger *zap.Logger) *IngestionHandler {
	return &IngestionHandler{pipeline: pipeline, memories: memories, beliefs: beliefs, embedder: embedder, logger: logger}
}

type ingestRequest struct {
	AgentID   string         `json:"agentId" validate:"required"`
	Content   string         `json:"content" validate:"required"`
	Source    string         `json:"source,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (req ingestRequest) toInput() ingestion.Input {
	return ingestion.Input{
		AgentID:   req.AgentID,
		Content:   req.Content,
		Source:    req.Source,
		Timestamp: req.Timestamp,
		Metadata:  req.Metadata,
	}
}

// Ingest handles POST /ingest.
func (h *IngestionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), req.toInput())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// DryRun handles POST /dry-run.
func (h *IngestionHandler) DryRun(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.pipeline.DryRunIngest(r.Context(), req.toInput())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Validate handles POST /validate: the same request shape as ingest,
// reporting only whether it would be accepted.
func (h *IngestionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"valid":  false,
			"errors": validate.FieldErrors(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

type searchRequest struct {
	AgentID            string  `json:"agentId" validate:"required"`
	Query              string  `json:"query" validate:"required"`
	Limit              int     `json:"limit" validate:"required,min=1,max=1000"`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty"`
}

// Search handles POST /search.
func (h *IngestionHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var queryVector []float32
	if h.embedder != nil {
		if vec, err := h.embedder.Embed(r.Context(), req.Query); err != nil {
			h.logger.Warn("query embedding failed, falling back to text search", zap.Error(err))
		} else {
			queryVector = vec
		}
	}

	matches, err := h.memories.SearchSimilar(r.Context(), req.Query, queryVector, req.Limit, req.AgentID, req.SimilarityThreshold)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		out = append(out, map[string]any{
			"memoryId":       m.Memory.ID,
			"content":        m.Memory.Content,
			"relevanceScore": m.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Health handles GET /health.
func (h *IngestionHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Statistics handles GET /statistics.
func (h *IngestionHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		writeError(w, h.logger, apperr.New(apperr.InvalidInput, "agentId query parameter is required"))
		return
	}

	memCount, err := h.memories.CountByAgent(r.Context(), agentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	beliefCount, err := h.beliefs.CountByAgent(r.Context(), agentID, true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	byCategory, err := h.beliefs.CountByCategory(r.Context(), agentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agentId":            agentID,
		"memoryCount":        memCount,
		"beliefCount":        beliefCount,
		"beliefsByCategory":  byCategory,
	})
}
