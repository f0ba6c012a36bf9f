// Package extraction implements domain.ExtractionProvider: the AI
// collaborator that classifies memory content and pulls candidate
// beliefs out of it, grounded on the teacher's hand-rolled net/http LLM
// clients rather than a vendored SDK.
package extraction

import (
	"context"
	"strings"

	"github.com/synapsed/synapse/internal/domain"
)

// MockProvider is a deterministic, dependency-free ExtractionProvider
// used in tests and as the default EXTRACTION_PROVIDER=mock backend.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Classify(ctx context.Context, content string) (domain.CategoryLabel, error) {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "prefer") || strings.Contains(lower, "like"):
		return domain.CategoryLabel{Primary: "preference", Confidence: 0.6}, nil
	case strings.Contains(lower, "always") || strings.Contains(lower, "never"):
		return domain.CategoryLabel{Primary: "rule", Confidence: 0.6}, nil
	default:
		return domain.CategoryLabel{Primary: "fact", Confidence: 0.5}, nil
	}
}

func (p *MockProvider) Extract(ctx context.Context, content string, agentID string, category domain.CategoryLabel) ([]domain.ExtractedBelief, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, nil
	}
	polarity := 1
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "not ") || strings.Contains(lower, "never") || strings.Contains(lower, "no longer") {
		polarity = -1
	}
	return []domain.ExtractedBelief{{
		Statement:  trimmed,
		Category:   category.Primary,
		Polarity:   polarity,
		Confidence: 0.5,
	}}, nil
}

func (p *MockProvider) Similarity(ctx context.Context, a, b string) (float64, error) {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0, nil
	}
	overlap := 0
	for w := range wa {
		if wb[w] {
			overlap++
		}
	}
	union := len(wa) + len(wb) - overlap
	if union == 0 {
		return 0, nil
	}
	return float64(overlap) / float64(union), nil
}

func (p *MockProvider) AreConflicting(ctx context.Context, a, b string) (bool, error) {
	sim, err := p.Similarity(context.Background(), a, b)
	if err != nil {
		return false, err
	}
	aNeg := strings.Contains(strings.ToLower(a), "not ") || strings.Contains(strings.ToLower(a), "never")
	bNeg := strings.Contains(strings.ToLower(b), "not ") || strings.Contains(strings.ToLower(b), "never")
	return sim > 0.4 && aNeg != bNeg, nil
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}
