package reconcile

import (
	"context"
	"fmt"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicOracle runs the classification through the Anthropic
// Messages API. The call is bounded by the configured timeout; retry
// policy lives in the engine, not here.
type AnthropicOracle struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropicOracle creates a Claude-backed oracle.
func NewAnthropicOracle(apiKey, model string, timeout time.Duration) (*AnthropicOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic oracle requires ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &AnthropicOracle{
		client:  anthropic.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}, nil
}

// Classify sends both exports in one large-context request and parses
// the strict-JSON verdict. Any transport or parse failure surfaces as
// an OracleError.
func (o *AnthropicOracle) Classify(ctx context.Context, memoryExport, corpusExport string) (*Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(o.model),
		MaxTokens: 4000,
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(buildPrompt(memoryExport, corpusExport))},
			},
		},
	})
	if err != nil {
		return nil, &OracleError{Err: err}
	}
	if len(resp.Content) == 0 {
		return nil, &OracleError{Err: fmt.Errorf("empty response")}
	}

	c, err := parseClassification(resp.Content[0].GetText())
	if err != nil {
		return nil, &OracleError{Err: err}
	}
	return c, nil
}
