package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

const (
	defaultModel     = "claude-3-5-sonnet-20241022"
	defaultMaxTokens = 4096
)

// AnthropicExecutor runs a node as a single Claude completion. The node
// config supplies the prompt template ("prompt"), and optionally "model"
// and "max_tokens"; dependency outputs are appended as JSON context.
type AnthropicExecutor struct {
	client anthropic.Client
	logger *zap.Logger
	model  string
}

// NewAnthropicExecutor creates an Anthropic-backed node executor.
func NewAnthropicExecutor(apiKey, model string, logger *zap.Logger) *AnthropicExecutor {
	if model == "" {
		model = defaultModel
	}
	return &AnthropicExecutor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
		model:  model,
	}
}

// Execute implements ports.NodeExecutor.
func (e *AnthropicExecutor) Execute(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
	prompt, err := e.buildPrompt(input)
	if err != nil {
		return ports.NodeResult{}, err
	}

	model := e.model
	if m, ok := input.Config["model"].(string); ok && m != "" {
		model = m
	}
	maxTokens := int64(defaultMaxTokens)
	if mt, ok := input.Config["max_tokens"].(float64); ok && mt > 0 {
		maxTokens = int64(mt)
	}

	e.logger.Debug("calling anthropic",
		zap.String("node_id", input.NodeID),
		zap.String("model", model),
		zap.Int("attempt", input.Attempt))

	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return ports.NodeResult{}, fmt.Errorf("anthropic call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return ports.NodeResult{
		Output: map[string]interface{}{
			"text":  sb.String(),
			"model": model,
		},
	}, nil
}

// buildPrompt assembles the user message from the node config prompt and
// the node's dependency outputs.
func (e *AnthropicExecutor) buildPrompt(input ports.NodeInput) (string, error) {
	prompt, _ := input.Config["prompt"].(string)
	if prompt == "" {
		prompt = fmt.Sprintf("Execute node %s", input.NodeID)
	}
	if len(input.DependencyOutputs) == 0 {
		return prompt, nil
	}

	deps, err := json.MarshalIndent(input.DependencyOutputs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode dependency outputs: %w", err)
	}
	return fmt.Sprintf("%s\n\nUpstream outputs:\n%s", prompt, deps), nil
}
