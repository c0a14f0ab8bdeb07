package nlp

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundprediction/medinsight/pkg/types"
	"google.golang.org/genai"
)

// GenAIClient implements Client on Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	config LLMConfig
}

// NewGenAIClient creates a Gemini client.
func NewGenAIClient(ctx context.Context, config LLMConfig) (*GenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, config: config}, nil
}

// Chat generates a complete response.
func (c *GenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	contents, cfg := c.buildRequest(messages)

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, NewEmptyResponseError("genai returned no text")
	}

	response := &types.Response{Content: text, Model: c.config.Model}
	if len(resp.Candidates) > 0 {
		response.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		response.TokensUsed = &types.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return response, nil
}

// Stream generates a response and forwards each non-empty chunk to onToken.
func (c *GenAIClient) Stream(ctx context.Context, messages []types.Message, onToken TokenFunc) error {
	contents, cfg := c.buildRequest(messages)

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.config.Model, contents, cfg) {
		if err != nil {
			return fmt.Errorf("genai stream failed: %w", err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		if err := onToken(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the GenAI client holds no resources that need releasing.
func (c *GenAIClient) Close() error {
	return nil
}

// buildRequest moves system messages into the system instruction and maps
// assistant turns to the model role.
func (c *GenAIClient) buildRequest(messages []types.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	temperature := c.config.Temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if c.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}
