// internal/pipeline/compose-reply/external.go
package composereply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	commonhttp "clarity-agent/internal/common/http"
	"clarity-agent/internal/common/logger"
)

var (
	ErrModelTimeout     = errors.New("MODEL_TIMEOUT")
	ErrModelUnavailable = errors.New("MODEL_UNAVAILABLE")
)

// ExternalModelComposer calls a generation endpoint and degrades to the
// rule-based composer whenever the model cannot produce usable text.
type ExternalModelComposer struct {
	config   *Config
	client   *commonhttp.Client
	fallback *RuleBasedComposer
	logger   logger.Logger
}

func NewExternalModelComposer(config *Config, log logger.Logger) *ExternalModelComposer {
	if config == nil {
		config = DefaultConfig()
	}
	return &ExternalModelComposer{
		config: config,
		// No transport timeout: the per-compose context bounds each call.
		client:   commonhttp.NewClient(0),
		fallback: NewRuleBasedComposer(log),
		logger:   log.WithFields(map[string]interface{}{"stage": StageName, "composer": SourceExternalModel}),
	}
}

func (c *ExternalModelComposer) Compose(parent context.Context, input *Input) (*Reply, error) {
	// Clarification prompts and degraded acknowledgments keep their
	// fixed wording; only organic replies go to the model.
	if input.Clarification != nil || input.Degraded {
		return c.fallback.Compose(parent, input)
	}

	ctx, cancel := context.WithTimeout(parent, c.config.Timeout)
	defer cancel()

	reply, err := c.generate(ctx, input)
	if err == nil {
		return reply, nil
	}
	if parent.Err() != nil {
		// Caller is gone; a fallback reply would be discarded anyway.
		return nil, err
	}

	c.logger.Warn("External model unavailable, composing rule-based reply", map[string]interface{}{
		"error": err.Error(),
	})
	return c.fallback.Compose(parent, input)
}

func (c *ExternalModelComposer) generate(ctx context.Context, input *Input) (*Reply, error) {
	requestBody := map[string]interface{}{
		"prompt":      c.buildPrompt(input),
		"provider":    c.config.Provider,
		"model":       c.config.Model,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
		"context": map[string]interface{}{
			"intent": input.Intent,
			"mood":   input.Mood,
		},
	}

	headers := map[string]string{}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	resp, err := c.client.PostJSON(ctx, c.config.BaseURL+"/api/ai/generate", requestBody, headers, c.config.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrModelTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrModelUnavailable, err)
	}
	if strings.TrimSpace(apiResponse.Text) == "" {
		return nil, fmt.Errorf("%w: blank reply", ErrModelUnavailable)
	}

	c.logger.Debug("External reply generated", map[string]interface{}{
		"confidence": apiResponse.Confidence,
	})
	return &Reply{Text: apiResponse.Text, Source: SourceExternalModel}, nil
}

func (c *ExternalModelComposer) buildPrompt(input *Input) string {
	var parts []string

	parts = append(parts, "You are a supportive study-wellness coach. Reply with empathy in under 120 words.")
	parts = append(parts, fmt.Sprintf("\nUser message: %s", input.Text))
	if input.Mood != "" {
		parts = append(parts, fmt.Sprintf("Detected mood: %s", input.Mood))
	}

	if len(input.Passages) > 0 {
		parts = append(parts, "\nGrounding notes:")
		for _, p := range input.Passages {
			parts = append(parts, fmt.Sprintf("- %s", p.Text()))
		}
	}

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Ground advice in the notes when they are relevant")
	parts = append(parts, "- Never give medical advice or diagnoses")
	parts = append(parts, "- Offer one small concrete next step")

	parts = append(parts, "\nReply:")

	return strings.Join(parts, "\n")
}
