// Package domain holds the core types shared by stores, engines, and
// pipelines: the vocabulary the rest of the module is built from.
package domain

import (
	"math"
	"time"
)

// CategoryLabel is the result of classifying a memory's content.
type CategoryLabel struct {
	Primary    string   `json:"primary"`
	Secondary  string   `json:"secondary,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Metadata is the fixed set of named fields every memory carries,
// alongside whatever scalar extension attributes the caller supplied.
type Metadata struct {
	Source       string         `json:"source,omitempty"`
	Importance   float64        `json:"importance"`
	AccessCount  int            `json:"access_count"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// MemoryRecord is one ingested observation belonging to a single agent.
type MemoryRecord struct {
	ID                string
	AgentID           string
	Content           string
	Category          CategoryLabel
	Metadata          Metadata
	CreatedAt         time.Time
	LastAccessed      time.Time
	RelevanceScore    *float64
	Version           int
	Embedding         []float32
	EmbeddingMagnitude *float64
	Archived          bool
}

// L2Norm computes the Euclidean norm of a vector.
func L2Norm(v []float32) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	return math.Sqrt(sumSq)
}

// SetEmbedding assigns an embedding and recomputes its precomputed
// magnitude, preserving the invariant that EmbeddingMagnitude == ‖v‖₂.
func (m *MemoryRecord) SetEmbedding(v []float32) {
	if len(v) == 0 {
		m.Embedding = nil
		m.EmbeddingMagnitude = nil
		return
	}
	m.Embedding = v
	norm := L2Norm(v)
	m.EmbeddingMagnitude = &norm
}

// CosineSimilarity computes cos(a, b); invalid or zero-magnitude vectors
// yield 0 rather than NaN or a division panic.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
