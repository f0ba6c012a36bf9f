package domain

import "context"

// ExtractedBelief is one statement an ExtractionProvider pulled out of
// raw memory content.
type ExtractedBelief struct {
	Statement  string
	Category   string
	Polarity   int // +1 affirms, -1 negates, 0 neutral
	Confidence float64
	Tags       []string
}

// ExtractionProvider is the AI classification/belief-extraction
// collaborator: specified here only as the interface the core consumes.
type ExtractionProvider interface {
	// Classify assigns a CategoryLabel to raw memory content.
	Classify(ctx context.Context, content string) (CategoryLabel, error)
	// Extract pulls candidate beliefs out of memory content.
	Extract(ctx context.Context, content string, agentID string, category CategoryLabel) ([]ExtractedBelief, error)
	// Similarity scores how semantically close two statements are, in [0,1].
	Similarity(ctx context.Context, a, b string) (float64, error)
	// AreConflicting reports whether two statements contradict each other.
	AreConflicting(ctx context.Context, a, b string) (bool, error)
}
