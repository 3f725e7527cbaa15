package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GeminiClient calls Models.GenerateContent with a JSON response MIME type.
type GeminiClient struct {
	params Params
	client *genai.Client
	logger zerolog.Logger
}

func NewGeminiClient(ctx context.Context, p Params, logger zerolog.Logger) (*GeminiClient, error) {
	if p.Seed != nil && (*p.Seed < math.MinInt32 || *p.Seed > math.MaxInt32) {
		return nil, fmt.Errorf("gemini seed %d does not fit in int32", *p.Seed)
	}
	cc := &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{
		params: p,
		client: client,
		logger: logger.With().Str("component", "llm.gemini").Logger(),
	}, nil
}

func (c *GeminiClient) config(system string) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(c.params.Temperature)),
		MaxOutputTokens:   int32(c.params.MaxOutputTokens),
		ResponseMIMEType:  "application/json",
	}
	if c.params.Seed != nil {
		gc.Seed = genai.Ptr(int32(*c.params.Seed))
	}
	return gc
}

func (c *GeminiClient) Generate(ctx context.Context, system, user string) (*CallResult, error) {
	gc := c.config(system)
	contents := genai.Text(user)
	return retry(ctx, c.params, c.logger, func(ctx context.Context) (reply, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.params.Model, contents, gc)
		if err != nil {
			return reply{}, fmt.Errorf("generate content: %w", err)
		}
		text := resp.Text()
		if strings.TrimSpace(text) == "" {
			return reply{}, errors.New("response did not contain text output")
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			return reply{}, fmt.Errorf("encode response: %w", err)
		}
		r := reply{text: text, raw: raw}
		if u := resp.UsageMetadata; u != nil {
			r.inputTokens = intPtr(int(u.PromptTokenCount))
			r.outputTokens = intPtr(int(u.CandidatesTokenCount))
		}
		return r, nil
	})
}
