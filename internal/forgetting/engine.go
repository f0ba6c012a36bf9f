// Package forgetting implements the RelevanceForgettingEngine (C8):
// scoring memories for ongoing relevance and removing (archiving) the
// ones that fall below the configured bar. Grounded on the teacher's
// ExpirerService for the background Start/Stop ticker shape.
package forgetting

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/metrics"
)

const (
	recencyTau     = 30 * 24 * time.Hour
	accessFreqK    = 20.0
	beliefSupportS = 3.0

	defaultSweepInterval = 6 * time.Hour
)

// BeliefCiter counts how many active beliefs cite a memory as evidence.
// Implemented by the belief store in practice; kept narrow here so the
// engine doesn't need the whole BeliefStore surface.
type BeliefCiter interface {
	CountCitingMemory(ctx context.Context, agentID, memoryID string) (int, error)
}

// Engine is the RelevanceForgettingEngine (C8).
type Engine struct {
	memories domain.MemoryStore
	citer    BeliefCiter
	weights  domain.RelevanceWeights
	rules    []domain.ProtectionRule
	logger   *zap.Logger

	sweepStrategy domain.ForgettingStrategy
	interval      time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	metrics       *metrics.Collectors
}

// SetMetrics attaches the prometheus collectors the engine reports
// removal counts to. Optional: a nil collector set skips instrumentation.
func (e *Engine) SetMetrics(c *metrics.Collectors) { e.metrics = c }

func NewEngine(memories domain.MemoryStore, citer BeliefCiter, weights domain.RelevanceWeights, rules []domain.ProtectionRule, sweepStrategy domain.ForgettingStrategy, logger *zap.Logger) *Engine {
	return &Engine{
		memories:      memories,
		citer:         citer,
		weights:       weights,
		rules:         rules,
		logger:        logger,
		sweepStrategy: sweepStrategy,
		interval:      defaultSweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// SetInterval overrides the background sweep period.
func (e *Engine) SetInterval(d time.Duration) { e.interval = d }

// Start runs performForgetting for every agent on a periodic schedule,
// mirroring the teacher's ExpirerService ticker/stopCh/WaitGroup shape.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.logger.Info("forgetting sweep started", zap.Duration("interval", e.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				e.sweep(ctx)
				cancel()
			case <-e.stopCh:
				e.logger.Info("forgetting sweep stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background sweep.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Engine) sweep(ctx context.Context) {
	agentIDs, err := e.memories.ListDistinctAgentIDs(ctx)
	if err != nil {
		e.logger.Error("failed to list agents for forgetting sweep", zap.Error(err))
		return
	}
	for _, agentID := range agentIDs {
		report, err := e.PerformForgetting(ctx, e.sweepStrategy, agentID)
		if err != nil {
			e.logger.Warn("forgetting sweep failed for agent", zap.String("agent_id", agentID), zap.Error(err))
			continue
		}
		if report.RemovedCount > 0 {
			e.logger.Info("forgetting sweep removed memories",
				zap.String("agent_id", agentID), zap.Int("removed", report.RemovedCount), zap.Int("retained", report.RetainedCount))
		}
	}
}

// Evaluate implements RelevanceForgettingEngine.evaluate.
func (e *Engine) Evaluate(ctx context.Context, m *domain.MemoryRecord) (float64, error) {
	recency := math.Exp(-time.Since(m.LastAccessed).Seconds() / recencyTau.Seconds())

	accessFreq := float64(m.Metadata.AccessCount) / accessFreqK
	if accessFreq > 1 {
		accessFreq = 1
	}

	importance := m.Metadata.Importance
	if importance == 0 {
		importance = 0.5
	}

	beliefSupport := 0.0
	if e.citer != nil {
		n, err := e.citer.CountCitingMemory(ctx, m.AgentID, m.ID)
		if err != nil {
			return 0, err
		}
		beliefSupport = float64(n) / beliefSupportS
		if beliefSupport > 1 {
			beliefSupport = 1
		}
	}

	score := e.weights.Recency*recency +
		e.weights.AccessFrequency*accessFreq +
		e.weights.Importance*importance +
		e.weights.BeliefSupport*beliefSupport
	return score, nil
}

// EvaluateBatch implements RelevanceForgettingEngine.evaluateBatch.
func (e *Engine) EvaluateBatch(ctx context.Context, memories []domain.MemoryRecord) (map[string]float64, error) {
	out := make(map[string]float64, len(memories))
	for i := range memories {
		score, err := e.Evaluate(ctx, &memories[i])
		if err != nil {
			return out, err
		}
		out[memories[i].ID] = score
	}
	return out, nil
}

func (e *Engine) protected(m *domain.MemoryRecord) (string, bool) {
	for _, r := range e.rules {
		if r.Predicate(m) {
			return r.Name, true
		}
	}
	return "", false
}

// PerformForgetting implements RelevanceForgettingEngine.performForgetting.
func (e *Engine) PerformForgetting(ctx context.Context, strategy domain.ForgettingStrategy, agentID string) (*domain.ForgettingReport, error) {
	if strategy.Kind == domain.StrategyLeastUsed {
		return e.performLeastUsed(ctx, strategy, agentID)
	}

	memories, err := e.candidateSet(ctx, strategy, agentID)
	if err != nil {
		return nil, err
	}

	report := &domain.ForgettingReport{Strategy: strategy.Kind, DryRun: strategy.DryRun}

	var toRemove []string
	for i := range memories {
		m := &memories[i]
		if name, yes := e.protected(m); yes {
			report.Retained = append(report.Retained, domain.ForgettingCandidate{MemoryID: m.ID, Reason: "protected:" + name})
			continue
		}

		remove, reason, score, err := e.decide(ctx, strategy, m)
		if err != nil {
			return report, err
		}
		if remove {
			report.Removed = append(report.Removed, domain.ForgettingCandidate{MemoryID: m.ID, Reason: reason, Score: score})
			toRemove = append(toRemove, m.ID)
		} else {
			report.Retained = append(report.Retained, domain.ForgettingCandidate{MemoryID: m.ID, Reason: reason, Score: score})
		}
	}

	report.RemovedCount = len(toRemove)
	report.RetainedCount = len(report.Retained)

	if !strategy.DryRun && len(toRemove) > 0 {
		if err := e.memories.Archive(ctx, toRemove, string(strategy.Kind)); err != nil {
			return report, err
		}
		if e.metrics != nil {
			e.metrics.ForgottenTotal.Add(float64(len(toRemove)))
		}
	}
	return report, nil
}

func (e *Engine) candidateSet(ctx context.Context, strategy domain.ForgettingStrategy, agentID string) ([]domain.MemoryRecord, error) {
	if strategy.Kind == domain.StrategyExplicit {
		return e.memories.GetMany(ctx, strategy.IDs)
	}
	var out []domain.MemoryRecord
	cursor := ""
	for {
		page, next, err := e.memories.ListByAgent(ctx, agentID, 500, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}

func (e *Engine) decide(ctx context.Context, strategy domain.ForgettingStrategy, m *domain.MemoryRecord) (remove bool, reason string, score float64, err error) {
	switch strategy.Kind {
	case domain.StrategyAge:
		age := time.Since(m.CreatedAt)
		if age > strategy.MaxAge {
			return true, "age exceeds max age", 0, nil
		}
		return false, "within max age", 0, nil

	case domain.StrategyLowScore:
		score, err = e.Evaluate(ctx, m)
		if err != nil {
			return false, "", 0, err
		}
		if score < strategy.ScoreThreshold {
			return true, "relevance below threshold", score, nil
		}
		return false, "relevance above threshold", score, nil

	case domain.StrategyExplicit:
		return true, "explicitly requested", 0, nil

	default:
		return false, "unrecognized strategy", 0, nil
	}
}

// performLeastUsed handles LEAST_USED, which needs the whole agent's
// set ranked together rather than a per-memory decision — kept separate
// from decide() because it is the one strategy that is not evaluated
// independently per candidate.
func (e *Engine) performLeastUsed(ctx context.Context, strategy domain.ForgettingStrategy, agentID string) (*domain.ForgettingReport, error) {
	memories, err := e.candidateSet(ctx, strategy, agentID)
	if err != nil {
		return nil, err
	}
	retainCount := strategy.RetainCount
	dryRun := strategy.DryRun

	type scored struct {
		memory domain.MemoryRecord
		weight float64
	}
	ranked := make([]scored, 0, len(memories))
	for _, m := range memories {
		recency := math.Exp(-time.Since(m.LastAccessed).Seconds() / recencyTau.Seconds())
		weight := recency * float64(m.Metadata.AccessCount+1)
		ranked = append(ranked, scored{memory: m, weight: weight})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].weight > ranked[j].weight })

	report := &domain.ForgettingReport{Strategy: domain.StrategyLeastUsed, DryRun: dryRun}
	var toRemove []string
	for i, s := range ranked {
		if name, yes := e.protected(&s.memory); yes {
			report.Retained = append(report.Retained, domain.ForgettingCandidate{MemoryID: s.memory.ID, Reason: "protected:" + name})
			continue
		}
		if i < retainCount {
			report.Retained = append(report.Retained, domain.ForgettingCandidate{MemoryID: s.memory.ID, Reason: "within retainCount", Score: s.weight})
			continue
		}
		report.Removed = append(report.Removed, domain.ForgettingCandidate{MemoryID: s.memory.ID, Reason: "outside retainCount", Score: s.weight})
		toRemove = append(toRemove, s.memory.ID)
	}
	report.RemovedCount = len(toRemove)
	report.RetainedCount = len(report.Retained)

	if !dryRun && len(toRemove) > 0 {
		if err := e.memories.Archive(ctx, toRemove, string(domain.StrategyLeastUsed)); err != nil {
			return report, err
		}
		if e.metrics != nil {
			e.metrics.ForgottenTotal.Add(float64(len(toRemove)))
		}
	}
	return report, nil
}

// Archive implements RelevanceForgettingEngine.archive.
func (e *Engine) Archive(ctx context.Context, ids []string, reason string) error {
	return e.memories.Archive(ctx, ids, reason)
}

// Restore implements RelevanceForgettingEngine.restore.
func (e *Engine) Restore(ctx context.Context, ids []string) error {
	return e.memories.Restore(ctx, ids)
}
