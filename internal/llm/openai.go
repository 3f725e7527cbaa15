package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient calls the chat-completions endpoint in JSON-object mode.
type OpenAIClient struct {
	params     Params
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewOpenAIClient(p Params, logger zerolog.Logger) *OpenAIClient {
	base := p.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		params:     p,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "llm.openai").Logger(),
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model           string               `json:"model"`
	Messages        []openAIMessage      `json:"messages"`
	Temperature     float64              `json:"temperature"`
	MaxTokens       int                  `json:"max_completion_tokens"`
	ResponseFormat  openAIResponseFormat `json:"response_format"`
	Seed            *int64               `json:"seed,omitempty"`
	ReasoningEffort string               `json:"reasoning_effort,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (*CallResult, error) {
	body, err := json.Marshal(openAIRequest{
		Model: c.params.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:     c.params.Temperature,
		MaxTokens:       c.params.MaxOutputTokens,
		ResponseFormat:  openAIResponseFormat{Type: "json_object"},
		Seed:            c.params.Seed,
		ReasoningEffort: c.params.ReasoningEffort,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return retry(ctx, c.params, c.logger, func(ctx context.Context) (reply, error) {
		return c.post(ctx, body)
	})
}

func (c *OpenAIClient) post(ctx context.Context, body []byte) (reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return reply{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.params.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return reply{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return reply{}, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, snippet(raw))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return reply{}, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return reply{}, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return reply{}, errors.New("response did not contain text output")
	}

	r := reply{text: parsed.Choices[0].Message.Content, raw: raw}
	if parsed.Usage != nil {
		r.inputTokens = intPtr(parsed.Usage.PromptTokens)
		r.outputTokens = intPtr(parsed.Usage.CompletionTokens)
	}
	return r, nil
}

func snippet(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
