package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"warvox/internal/types"
)

// GeminiConfig configures the Gemini REST client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
}

// DefaultGeminiConfig returns sensible defaults. Flash models are cheap
// and fast, which suits a classifier that gates every utterance.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.5-flash",
		Timeout:         60 * time.Second,
		MaxOutputTokens: 8192,
		Temperature:     0.1,
	}
}

// GeminiClient implements types.LLMClient over the Gemini REST API.
type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

// NewGeminiClient creates a client with custom config.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	defaults := DefaultGeminiConfig("")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaults.MaxOutputTokens
	}
	return &GeminiClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type geminiPart struct {
	Text         string `json:"text,omitempty"`
	FunctionCall *struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	} `json:"functionCall,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.generate(ctx, systemPrompt, userPrompt, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// CompleteWithTools sends a prompt with function declarations and maps
// returned functionCall parts to generic tool calls.
func (c *GeminiClient) CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	resp, err := c.generate(ctx, systemPrompt, userPrompt, tools)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]

	out := &types.LLMToolResponse{
		StopReason: candidate.FinishReason,
		Usage: types.UsageMetadata{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		},
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.FunctionCall != nil {
			// Gemini function calls carry no id of their own; mint one so
			// downstream results stay addressable.
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    "call-" + uuid.NewString(),
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
			continue
		}
		text.WriteString(part.Text)
	}
	out.Text = text.String()
	return out, nil
}

func (c *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string, tools []types.ToolDefinition) (*geminiResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
	}
	reqBody.GenerationConfig.MaxOutputTokens = c.cfg.MaxOutputTokens
	reqBody.GenerationConfig.Temperature = c.cfg.Temperature
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	if len(tools) > 0 {
		declarations := make([]geminiFunctionDeclaration, len(tools))
		for i, t := range tools {
			declarations[i] = geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			}
		}
		reqBody.Tools = []geminiTool{{FunctionDeclarations: declarations}}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return &parsed, nil
}
