package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/synapsed/synapse/internal/domain"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicModel       = "claude-3-5-haiku-20241022"
	anthropicVersion     = "2023-06-01"
)

// AnthropicProvider is the net/http-backed ExtractionProvider used when
// EXTRACTION_PROVIDER=anthropic. It follows the teacher's hand-rolled
// client style rather than a vendored SDK: one small JSON request/
// response pair per capability, no retries or streaming.
type AnthropicProvider struct {
	apiKey     string
	httpClient *http.Client
}

func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{apiKey: apiKey, httpClient: &http.Client{}}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicProvider) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read anthropic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal anthropic response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", result.Error.Message)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic API returned no content")
	}
	return strings.TrimSpace(result.Content[0].Text), nil
}

const classifyPrompt = `Classify the following memory content into one primary category
(one of: fact, preference, rule, goal, relationship, other), an optional
secondary category, and a confidence between 0 and 1. Respond with exactly
three lines: primary, secondary (or "-"), confidence.

Content: %s`

func (c *AnthropicProvider) Classify(ctx context.Context, content string) (domain.CategoryLabel, error) {
	result, err := c.complete(ctx, fmt.Sprintf(classifyPrompt, content), 64)
	if err != nil {
		return domain.CategoryLabel{}, fmt.Errorf("classify: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(result), "\n")
	label := domain.CategoryLabel{Primary: "fact", Confidence: 0.5}
	if len(lines) > 0 {
		label.Primary = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 && strings.TrimSpace(lines[1]) != "-" {
		label.Secondary = strings.TrimSpace(lines[1])
	}
	if len(lines) > 2 {
		if conf, err := strconv.ParseFloat(strings.TrimSpace(lines[2]), 64); err == nil {
			label.Confidence = conf
		}
	}
	return label, nil
}

const extractPrompt = `Extract standalone belief statements from the memory content below.
Respond as a JSON array of objects with fields "statement", "polarity"
(1 for affirms, -1 for negates), and "confidence" (0 to 1).

Content: %s`

type extractedLine struct {
	Statement  string  `json:"statement"`
	Polarity   int     `json:"polarity"`
	Confidence float64 `json:"confidence"`
}

func (c *AnthropicProvider) Extract(ctx context.Context, content string, agentID string, category domain.CategoryLabel) ([]domain.ExtractedBelief, error) {
	result, err := c.complete(ctx, fmt.Sprintf(extractPrompt, content), 1024)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	var lines []extractedLine
	if err := json.Unmarshal([]byte(result), &lines); err != nil {
		return nil, fmt.Errorf("parse extraction result: %w (raw: %s)", err, result)
	}

	out := make([]domain.ExtractedBelief, 0, len(lines))
	for _, l := range lines {
		conf := l.Confidence
		if conf == 0 {
			conf = 0.5
		}
		out = append(out, domain.ExtractedBelief{
			Statement:  l.Statement,
			Category:   category.Primary,
			Polarity:   l.Polarity,
			Confidence: conf,
		})
	}
	return out, nil
}

const similarityPrompt = `On a scale of 0 to 1, how semantically similar are these two statements?
Respond with only the number.

A: %s
B: %s`

func (c *AnthropicProvider) Similarity(ctx context.Context, a, b string) (float64, error) {
	result, err := c.complete(ctx, fmt.Sprintf(similarityPrompt, a, b), 16)
	if err != nil {
		return 0, fmt.Errorf("similarity: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(result), 64)
	if err != nil {
		return 0, fmt.Errorf("parse similarity result %q: %w", result, err)
	}
	return v, nil
}

const conflictPrompt = `Do these two statements contradict each other? Respond with only "true" or "false".

A: %s
B: %s`

func (c *AnthropicProvider) AreConflicting(ctx context.Context, a, b string) (bool, error) {
	result, err := c.complete(ctx, fmt.Sprintf(conflictPrompt, a, b), 16)
	if err != nil {
		return false, fmt.Errorf("check conflict: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(result), "true"), nil
}
