// Package anthropic implements the generation capability over the Anthropic
// messages API. Differences from the OpenAI shape: authentication uses the
// x-api-key header, and the system prompt travels in a dedicated field
// rather than as a message.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/providers"
	"github.com/BaSui01/colloquy/types"
)

// ParticipantName is the identity this backend takes in a conversation.
const ParticipantName = "Claude"

const (
	defaultModel = "claude-3-5-sonnet-20241022"
	apiVersion   = "2023-06-01"
)

// Provider calls the Anthropic messages endpoint.
type Provider struct {
	cfg    providers.AnthropicConfig
	client *http.Client
	logger *zap.Logger
}

// New creates an Anthropic provider.
func New(cfg providers.AnthropicConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (p *Provider) Name() string { return ParticipantName }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces the next reply for the given context.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, maxTokens int) (string, error) {
	body := request{
		Model:       p.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}
	// System entries travel separately on this API.
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			body.System = m.Content
			continue
		}
		body.Messages = append(body.Messages, message{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", types.NewGenerationError(ParticipantName, err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewGenerationError(ParticipantName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", types.NewGenerationError(ParticipantName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewGenerationError(ParticipantName,
			fmt.Errorf("anthropic: status=%d msg=%s", resp.StatusCode, readErrMsg(resp.Body)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewGenerationError(ParticipantName, fmt.Errorf("decode response: %w", err))
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			p.logger.Debug("generation completed", zap.String("model", p.cfg.Model))
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", types.NewGenerationError(ParticipantName, fmt.Errorf("no text content in response"))
}

func readErrMsg(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var e errorResponse
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(data))
}
