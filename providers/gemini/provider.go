// Package gemini implements the generation capability over the Google
// Gemini generateContent API. The assistant role maps to "model", and the
// system prompt travels as a systemInstruction.
package gemini

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
const ParticipantName = "Gemini"

const defaultModel = "gemini-2.0-flash-exp"

// Provider calls the Gemini generateContent endpoint.
type Provider struct {
	cfg    providers.GeminiConfig
	client *http.Client
	logger *zap.Logger
}

// New creates a Gemini provider.
func New(cfg providers.GeminiConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
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

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`
}

type request struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate produces the next reply for the given context.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, maxTokens int) (string, error) {
	body := request{
		GenerationConfig: generationConfig{MaxOutputTokens: maxTokens, Temperature: 0.7},
	}
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			body.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
		case types.RoleAssistant:
			body.Contents = append(body.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			body.Contents = append(body.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", types.NewGenerationError(ParticipantName, err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewGenerationError(ParticipantName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", types.NewGenerationError(ParticipantName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewGenerationError(ParticipantName,
			fmt.Errorf("gemini: status=%d msg=%s", resp.StatusCode, readErrMsg(resp.Body)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewGenerationError(ParticipantName, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", types.NewGenerationError(ParticipantName, fmt.Errorf("empty candidates"))
	}

	p.logger.Debug("generation completed", zap.String("model", p.cfg.Model))
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
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
