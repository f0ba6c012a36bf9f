package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	AgentID string  `json:"agentId" validate:"required"`
	Content string  `json:"content" validate:"required,max=10"`
	Score   float64 `json:"score" validate:"gte=0,lte=1"`
}

func TestStructPassesValidRequest(t *testing.T) {
	req := sampleRequest{AgentID: "agent-1", Content: "hello", Score: 0.5}
	require.NoError(t, Struct(req))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	req := sampleRequest{Content: "way too long for the limit", Score: 2.0}
	err := Struct(req)
	require.Error(t, err)

	fields := FieldErrors(err)
	assert.Contains(t, fields, "agentId")
	assert.Equal(t, "required", fields["agentId"])
	assert.Contains(t, fields, "content")
	assert.Equal(t, "max=10", fields["content"])
	assert.Contains(t, fields, "score")
	assert.Equal(t, "lte=1", fields["score"])
}

func TestFieldErrorsReturnsEmptyMapForNonValidationError(t *testing.T) {
	fields := FieldErrors(assert.AnError)
	assert.Empty(t, fields)
}

func TestGetReturnsSameSingletonInstance(t *testing.T) {
	assert.Same(t, Get(), Get())
}
