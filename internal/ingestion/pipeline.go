// Package ingestion implements the IngestionPipeline (C7): the single
// entry point that turns raw content into a stored, classified,
// belief-analyzed MemoryRecord. Grounded on the teacher's
// ConsolidationService numbered-step style.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/agentlock"
	"github.com/synapsed/synapse/internal/apperr"
	"github.com/synapsed/synapse/internal/belief"
	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/metrics"
)

// Input is one ingestion request.
type Input struct {
	AgentID   string
	Content   string
	Source    string
	Timestamp *time.Time
	Metadata  map[string]any
}

// Result is the outcome of a successful ingest call.
type Result struct {
	MemoryID         string
	Category         domain.CategoryLabel
	Encoded          bool
	UpdatedBeliefIDs []string
	Conflicts        []domain.BeliefConflict
	ProcessingMillis int64
	Status           string
}

// Embedder computes a vector embedding for memory content. Embedding is
// optional per the ingest algorithm; a nil Embedder simply skips it.
type Embedder interface {
	Embed(ctx context.Context, content string) ([]float32, error)
}

// Pipeline is the IngestionPipeline (C7).
type Pipeline struct {
	memories domain.MemoryStore
	provider domain.ExtractionProvider
	beliefs  *belief.Engine
	locks    *agentlock.Registry
	embedder Embedder
	logger   *zap.Logger
	metrics  *metrics.Collectors
}

func NewPipeline(memories domain.MemoryStore, provider domain.ExtractionProvider, beliefs *belief.Engine, locks *agentlock.Registry, embedder Embedder, logger *zap.Logger) *Pipeline {
	return &Pipeline{memories: memories, provider: provider, beliefs: beliefs, locks: locks, embedder: embedder, logger: logger}
}

// SetMetrics attaches the prometheus collectors ingest latency is
// reported to. Optional: a nil collector set skips instrumentation.
func (p *Pipeline) SetMetrics(c *metrics.Collectors) { p.metrics = c }

func validate(input Input) error {
	if strings.TrimSpace(input.AgentID) == "" {
		return apperr.New(apperr.InvalidInput, "agentId is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return apperr.New(apperr.InvalidInput, "content must not be empty")
	}
	return nil
}

func (p *Pipeline) classify(ctx context.Context, content string) domain.CategoryLabel {
	label, err := p.provider.Classify(ctx, content)
	if err != nil {
		p.logger.Warn("classification failed, falling back to Unknown", zap.Error(err))
		return domain.CategoryLabel{Primary: "Unknown", Confidence: 0.2}
	}
	return label
}

// Ingest implements IngestionPipeline.ingest.
func (p *Pipeline) Ingest(ctx context.Context, input Input) (*Result, error) {
	start := time.Now()
	if err := validate(input); err != nil {
		return nil, err
	}

	category := p.classify(ctx, input.Content)

	ts := time.Now().UTC()
	if input.Timestamp != nil {
		ts = *input.Timestamp
	}
	m := &domain.MemoryRecord{
		ID:        uuid.NewString(),
		AgentID:   input.AgentID,
		Content:   input.Content,
		Category:  category,
		CreatedAt: ts,
		Metadata: domain.Metadata{
			Source:     input.Source,
			Importance: 0.5,
			Extra:      input.Metadata,
		},
		Version: 1,
	}

	if p.embedder != nil {
		if vec, err := p.embedder.Embed(ctx, input.Content); err != nil {
			p.logger.Warn("embedding failed, storing without vector", zap.Error(err))
		} else {
			m.SetEmbedding(vec)
		}
	}

	if err := p.memories.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("persist memory: %w", err)
	}

	result := &Result{
		MemoryID: m.ID,
		Category: category,
		Encoded:  true,
		Status:   "ok",
	}

	var beliefErr error
	lockErr := p.locks.WithLock(input.AgentID, func() error {
		beliefResult, err := p.beliefs.AnalyzeNewMemory(ctx, m)
		if err != nil {
			beliefErr = err
			return nil
		}
		result.UpdatedBeliefIDs = append(result.UpdatedBeliefIDs, beliefResult.ReinforcedBeliefIDs...)
		result.UpdatedBeliefIDs = append(result.UpdatedBeliefIDs, beliefResult.NewBeliefIDs...)
		result.UpdatedBeliefIDs = append(result.UpdatedBeliefIDs, beliefResult.WeakenedBeliefIDs...)
		result.Conflicts = beliefResult.Conflicts
		return nil
	})
	if lockErr != nil {
		return nil, lockErr
	}
	if beliefErr != nil {
		p.logger.Warn("belief analysis failed after memory was persisted", zap.String("memoryId", m.ID), zap.Error(beliefErr))
		result.Status = "partial"
	}

	elapsed := time.Since(start)
	result.ProcessingMillis = elapsed.Milliseconds()
	if p.metrics != nil {
		p.metrics.IngestLatency.Observe(elapsed.Seconds())
	}
	return result, nil
}

// DryRunIngest implements IngestionPipeline.dryRunIngest: validate and
// classify only, with no persistence and no belief update.
func (p *Pipeline) DryRunIngest(ctx context.Context, input Input) (*Result, error) {
	start := time.Now()
	if err := validate(input); err != nil {
		return nil, err
	}
	category := p.classify(ctx, input.Content)
	return &Result{
		Category:         category,
		Encoded:          false,
		ProcessingMillis: time.Since(start).Milliseconds(),
		Status:           "dry_run",
	}, nil
}
