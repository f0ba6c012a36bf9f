// Package belief implements the BeliefEngine (C6): reconciling newly
// extracted belief statements against an agent's existing beliefs,
// reinforcing agreement, flagging contradictions, and applying the
// configured resolution strategy. Grounded on the teacher's
// ConsolidationService for pipeline shape (small numbered steps, a
// result struct summarizing what changed) and its cosineSimilarity/
// averageVectors helpers for the numeric core.
package belief

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/synapsed/synapse/internal/domain"
	"github.com/synapsed/synapse/internal/metrics"
)

// Result is the outcome of analyzing one memory's extracted beliefs.
type Result struct {
	ReinforcedBeliefIDs []string
	NewBeliefIDs        []string
	WeakenedBeliefIDs   []string
	Conflicts           []domain.BeliefConflict
}

// Engine is the BeliefEngine (C6).
type Engine struct {
	beliefs  domain.BeliefStore
	rels     domain.RelationshipStore
	provider domain.ExtractionProvider
	logger   *zap.Logger

	reinforceThreshold float64
	alpha              float64
	beta               float64
	resolutionFor      func(category string) domain.ResolutionStrategy
	metrics            *metrics.Collectors
}

func NewEngine(beliefs domain.BeliefStore, rels domain.RelationshipStore, provider domain.ExtractionProvider, logger *zap.Logger,
	reinforceThreshold, alpha, beta float64, resolutionFor func(category string) domain.ResolutionStrategy) *Engine {
	return &Engine{
		beliefs:            beliefs,
		rels:               rels,
		provider:           provider,
		logger:             logger,
		reinforceThreshold: reinforceThreshold,
		alpha:              alpha,
		beta:               beta,
		resolutionFor:      resolutionFor,
	}
}

// SetMetrics attaches the prometheus collectors the engine reports
// conflict/reinforce/weaken events to. Optional: a nil collector set
// (the default) simply skips instrumentation.
func (e *Engine) SetMetrics(c *metrics.Collectors) { e.metrics = c }

// AnalyzeNewMemory implements BeliefEngine.analyzeNewMemory.
func (e *Engine) AnalyzeNewMemory(ctx context.Context, m *domain.MemoryRecord) (*Result, error) {
	extracted, err := e.provider.Extract(ctx, m.Content, m.AgentID, m.Category)
	if err != nil {
		return nil, fmt.Errorf("extract beliefs: %w", err)
	}
	result := &Result{}
	if len(extracted) == 0 {
		return result, nil
	}

	for _, ex := range extracted {
		if err := e.reconcileOne(ctx, m, ex, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (e *Engine) reconcileOne(ctx context.Context, m *domain.MemoryRecord, ex domain.ExtractedBelief, result *Result) error {
	candidates, err := e.findCandidates(ctx, m.AgentID, ex)
	if err != nil {
		return fmt.Errorf("find belief candidates: %w", err)
	}

	var conflicting []domain.Belief
	for _, c := range candidates {
		isConflict, err := e.provider.AreConflicting(ctx, ex.Statement, c.Statement)
		if err != nil {
			e.logger.Warn("conflict check failed", zap.Error(err))
			continue
		}
		if isConflict {
			conflicting = append(conflicting, c)
		}
	}

	if len(conflicting) > 0 {
		for i := range conflicting {
			if err := e.handleConflict(ctx, m, ex, &conflicting[i], result); err != nil {
				return err
			}
		}
		return nil
	}

	if len(candidates) > 0 {
		return e.reinforce(ctx, m, &candidates[0], ex, result)
	}

	return e.createBelief(ctx, m, ex, result)
}

func (e *Engine) findCandidates(ctx context.Context, agentID string, ex domain.ExtractedBelief) ([]domain.Belief, error) {
	all, err := e.beliefs.FindByAgentAndCategory(ctx, agentID, ex.Category, true)
	if err != nil {
		return nil, err
	}
	var out []domain.Belief
	for _, b := range all {
		sim, err := e.provider.Similarity(ctx, ex.Statement, b.Statement)
		if err != nil {
			continue
		}
		if sim >= e.reinforceThreshold {
			out = append(out, b)
		}
	}
	return out, nil
}

func (e *Engine) reinforce(ctx context.Context, m *domain.MemoryRecord, b *domain.Belief, ex domain.ExtractedBelief, result *Result) error {
	b.Confidence = reinforceConfidence(b.Confidence, ex.Confidence, e.alpha)
	b.ReinforcementCount++
	b.LastUpdated = now()
	if b.EvidenceMemoryIDs == nil {
		b.EvidenceMemoryIDs = map[string]struct{}{}
	}
	b.EvidenceMemoryIDs[m.ID] = struct{}{}
	if err := e.beliefs.Update(ctx, b); err != nil {
		return fmt.Errorf("update reinforced belief: %w", err)
	}
	result.ReinforcedBeliefIDs = append(result.ReinforcedBeliefIDs, b.ID)
	if e.metrics != nil {
		e.metrics.ReinforcedTotal.Inc()
	}
	return nil
}

func (e *Engine) createBelief(ctx context.Context, m *domain.MemoryRecord, ex domain.ExtractedBelief, result *Result) error {
	b := &domain.Belief{
		AgentID:            m.AgentID,
		Statement:          ex.Statement,
		Confidence:         ex.Confidence,
		Category:           &domain.CategoryLabel{Primary: ex.Category},
		ReinforcementCount: 1,
		Active:             true,
		EvidenceMemoryIDs:  map[string]struct{}{m.ID: {}},
		Tags:               tagSet(ex.Tags),
	}
	if err := e.beliefs.Put(ctx, b); err != nil {
		return fmt.Errorf("create belief: %w", err)
	}
	result.NewBeliefIDs = append(result.NewBeliefIDs, b.ID)
	return nil
}

func (e *Engine) handleConflict(ctx context.Context, m *domain.MemoryRecord, ex domain.ExtractedBelief, old *domain.Belief, result *Result) error {
	delta := abs(old.Confidence - ex.Confidence)
	severity := domain.SeverityFromConfidenceDelta(delta)

	conflict := &domain.BeliefConflict{
		AgentID:              m.AgentID,
		ConflictingBeliefIDs: []string{old.ID},
		NewEvidenceMemoryID:  &m.ID,
		Description:          fmt.Sprintf("new statement %q contradicts existing belief %q", ex.Statement, old.Statement),
		ConflictType:         "contradiction",
		Severity:             severity,
		DetectedAt:           now(),
	}

	strategy := e.resolutionFor(ex.Category)
	conflict.ResolutionStrategy = &strategy

	switch strategy {
	case domain.ResolutionKeepBothFlag:
		conflict.AutoResolvable = false
		newBelief := &domain.Belief{
			AgentID:            m.AgentID,
			Statement:          ex.Statement,
			Confidence:         ex.Confidence,
			Category:           &domain.CategoryLabel{Primary: ex.Category},
			ReinforcementCount: 1,
			Active:             true,
			EvidenceMemoryIDs:  map[string]struct{}{m.ID: {}},
		}
		if err := e.beliefs.Put(ctx, newBelief); err != nil {
			return fmt.Errorf("create conflicting belief: %w", err)
		}
		result.NewBeliefIDs = append(result.NewBeliefIDs, newBelief.ID)
		conflict.ConflictingBeliefIDs = append(conflict.ConflictingBeliefIDs, newBelief.ID)
		if _, err := e.rels.CreateRelationship(ctx, newBelief.ID, old.ID, domain.RelContradicts, 1.0, m.AgentID, nil); err != nil {
			return fmt.Errorf("create contradicts edge: %w", err)
		}
		old.Confidence = weakenConfidence(old.Confidence, ex.Confidence, e.beta)
		old.LastUpdated = now()
		if err := e.beliefs.Update(ctx, old); err != nil {
			return fmt.Errorf("weaken old belief: %w", err)
		}
		e.recordWeakened(old.ID, result)

	case domain.ResolutionHigherConfidence:
		conflict.AutoResolvable = true
		newConf := ex.Confidence
		oldConf := weakenConfidence(old.Confidence, ex.Confidence, e.beta)
		if newConf >= oldConf {
			newBelief, err := e.deactivateAndSupersede(ctx, old, m, ex, result)
			if err != nil {
				return err
			}
			conflict.ConflictingBeliefIDs = append(conflict.ConflictingBeliefIDs, newBelief.ID)
		} else {
			old.Confidence = oldConf
			old.LastUpdated = now()
			if err := e.beliefs.Update(ctx, old); err != nil {
				return fmt.Errorf("weaken old belief: %w", err)
			}
			e.recordWeakened(old.ID, result)
		}

	default: // newer_wins
		conflict.AutoResolvable = true
		newBelief, err := e.deactivateAndSupersede(ctx, old, m, ex, result)
		if err != nil {
			return err
		}
		conflict.ConflictingBeliefIDs = append(conflict.ConflictingBeliefIDs, newBelief.ID)
	}

	if err := e.beliefs.CreateConflict(ctx, conflict); err != nil {
		return fmt.Errorf("record conflict: %w", err)
	}
	result.Conflicts = append(result.Conflicts, *conflict)
	if e.metrics != nil {
		e.metrics.BeliefConflictTotal.Inc()
	}
	return nil
}

func (e *Engine) recordWeakened(beliefID string, result *Result) {
	result.WeakenedBeliefIDs = append(result.WeakenedBeliefIDs, beliefID)
	if e.metrics != nil {
		e.metrics.WeakenedTotal.Inc()
	}
}

func (e *Engine) deactivateAndSupersede(ctx context.Context, old *domain.Belief, m *domain.MemoryRecord, ex domain.ExtractedBelief, result *Result) (*domain.Belief, error) {
	newBelief := &domain.Belief{
		AgentID:            m.AgentID,
		Statement:          ex.Statement,
		Confidence:         ex.Confidence,
		Category:           &domain.CategoryLabel{Primary: ex.Category},
		ReinforcementCount: 1,
		Active:             true,
		EvidenceMemoryIDs:  map[string]struct{}{m.ID: {}},
	}
	if err := e.beliefs.Put(ctx, newBelief); err != nil {
		return nil, fmt.Errorf("create superseding belief: %w", err)
	}
	result.NewBeliefIDs = append(result.NewBeliefIDs, newBelief.ID)

	if _, err := e.rels.DeprecateBeliefWith(ctx, old.ID, newBelief.ID, "superseded by contradicting evidence", m.AgentID); err != nil {
		return nil, fmt.Errorf("deprecate old belief: %w", err)
	}
	return newBelief, nil
}

// AnalyzeBatch implements BeliefEngine.analyzeBatch: groups memories by
// agent and processes them in (createdAt asc, id asc) order for stable,
// reproducible results regardless of input ordering.
func (e *Engine) AnalyzeBatch(ctx context.Context, memories []domain.MemoryRecord) (map[string]*Result, error) {
	byAgent := map[string][]domain.MemoryRecord{}
	for _, m := range memories {
		byAgent[m.AgentID] = append(byAgent[m.AgentID], m)
	}

	out := map[string]*Result{}
	for agentID, ms := range byAgent {
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
				return ms[i].ID < ms[j].ID
			}
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		})
		agg := &Result{}
		for i := range ms {
			r, err := e.AnalyzeNewMemory(ctx, &ms[i])
			if err != nil {
				return out, fmt.Errorf("analyze memory %s: %w", ms[i].ID, err)
			}
			agg.ReinforcedBeliefIDs = append(agg.ReinforcedBeliefIDs, r.ReinforcedBeliefIDs...)
			agg.NewBeliefIDs = append(agg.NewBeliefIDs, r.NewBeliefIDs...)
			agg.WeakenedBeliefIDs = append(agg.WeakenedBeliefIDs, r.WeakenedBeliefIDs...)
			agg.Conflicts = append(agg.Conflicts, r.Conflicts...)
		}
		out[agentID] = agg
	}
	return out, nil
}

// reinforceConfidence applies c' = min(1, c + (1-c)*alpha*e).
func reinforceConfidence(c, e, alpha float64) float64 {
	v := c + (1-c)*alpha*e
	if v > 1 {
		return 1
	}
	return v
}

// weakenConfidence applies c' = max(0, c - beta*e).
func weakenConfidence(c, e, beta float64) float64 {
	v := c - beta*e
	if v < 0 {
		return 0
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func tagSet(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		out[t] = struct{}{}
	}
	return out
}

func now() time.Time { return time.Now().UTC() }
