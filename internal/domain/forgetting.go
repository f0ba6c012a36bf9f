package domain

import "time"

// ForgettingStrategyKind selects which removal rule performForgetting runs.
type ForgettingStrategyKind string

const (
	StrategyAge       ForgettingStrategyKind = "AGE"
	StrategyLeastUsed ForgettingStrategyKind = "LEAST_USED"
	StrategyLowScore  ForgettingStrategyKind = "LOW_SCORE"
	StrategyExplicit  ForgettingStrategyKind = "EXPLICIT"
)

// ForgettingStrategy is a tagged-variant selector: exactly one of the
// per-case fields is meaningful, matching Kind.
type ForgettingStrategy struct {
	Kind          ForgettingStrategyKind
	MaxAge        time.Duration // AGE
	RetainCount   int           // LEAST_USED
	ScoreThreshold float64      // LOW_SCORE
	IDs           []string      // EXPLICIT
	DryRun        bool
}

// ProtectionRule is one named criterion; a memory matching any rule in
// the configured set is retained regardless of the active strategy.
type ProtectionRule struct {
	Name      string
	Predicate func(m *MemoryRecord) bool
}

// RelevanceWeights configures the weighted sum evaluate() uses.
type RelevanceWeights struct {
	Recency          float64
	AccessFrequency  float64
	Importance       float64
	BeliefSupport    float64
}

// DefaultRelevanceWeights matches spec.md §4.7's defaults.
func DefaultRelevanceWeights() RelevanceWeights {
	return RelevanceWeights{Recency: 0.4, AccessFrequency: 0.2, Importance: 0.2, BeliefSupport: 0.2}
}

// ForgettingCandidate pairs a memory id with the reason it was selected
// for removal (or retention, when reported for a dry run).
type ForgettingCandidate struct {
	MemoryID string
	Reason   string
	Score    float64
}

// ForgettingReport is the outcome of a performForgetting run.
type ForgettingReport struct {
	Strategy       ForgettingStrategyKind
	DryRun         bool
	RemovedCount   int
	RetainedCount  int
	Removed        []ForgettingCandidate
	Retained       []ForgettingCandidate
}
