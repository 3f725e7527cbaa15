// Package llm is the model-call collaborator. Each provider turns a system
// and user message into response text, retrying transport failures a
// bounded number of times and recording every attempt.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/config"
	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Attempt is the audit record of one transport attempt.
type Attempt struct {
	AttemptIndex int     `json:"attempt_index"`
	Status       string  `json:"status"`
	LatencyMS    int64   `json:"latency_ms"`
	InputTokens  *int    `json:"input_tokens"`
	OutputTokens *int    `json:"output_tokens"`
	Error        *string `json:"error"`
	Cached       bool    `json:"cached"`
}

// CallResult is a successful model call. Raw is the provider's response
// body as JSON.
type CallResult struct {
	Text     string
	Raw      json.RawMessage
	Attempts []Attempt
}

// FromCache reports whether the result was replayed rather than generated.
func (r *CallResult) FromCache() bool {
	for _, a := range r.Attempts {
		if a.Cached {
			return true
		}
	}
	return false
}

// Client generates one response for a prompt pair.
type Client interface {
	Generate(ctx context.Context, system, user string) (*CallResult, error)
}

// Committer is implemented by clients that keep a response once the caller
// has accepted it.
type Committer interface {
	Commit(ctx context.Context, system, user string, res *CallResult) error
}

// CallError is returned when every transport attempt failed.
type CallError struct {
	Attempts []Attempt
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("Model call failed after %d attempts: %v", len(e.Attempts), e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Attempts returns the attempt log carried by err, if any.
func Attempts(err error) []Attempt {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Attempts
	}
	return nil
}

// Params configures a provider client.
type Params struct {
	Provider        string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Seed            *int64
	ReasoningEffort string
	RetryLimit      int
	Timeout         time.Duration
	Backoff         time.Duration
	APIKey          string
	BaseURL         string
}

func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Provider:        cfg.ModelProvider,
		Model:           cfg.ModelName,
		Temperature:     cfg.ModelTemperature,
		MaxOutputTokens: cfg.ModelMaxOutputTokens,
		Seed:            cfg.ModelSeed,
		ReasoningEffort: cfg.ModelReasoningEffort,
		RetryLimit:      cfg.ModelRetryLimit,
		Timeout:         time.Duration(cfg.ModelTimeoutSeconds) * time.Second,
		Backoff:         time.Second,
		APIKey:          cfg.APIKey(),
		BaseURL:         cfg.ModelBaseURL,
	}
}

// New builds the client for p.Provider.
func New(ctx context.Context, p Params, logger zerolog.Logger) (Client, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("missing API key for provider %s", p.Provider)
	}
	switch p.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(p, logger), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, p, logger)
	default:
		return nil, fmt.Errorf("unknown model provider %q", p.Provider)
	}
}

// reply is what a single provider round trip yields.
type reply struct {
	text         string
	raw          json.RawMessage
	inputTokens  *int
	outputTokens *int
}

type callFunc func(ctx context.Context) (reply, error)

// retry runs call up to max(1, RetryLimit) times, each bounded by Timeout.
// Attempts are numbered from 1.
func retry(ctx context.Context, p Params, logger zerolog.Logger, call callFunc) (*CallResult, error) {
	total := max(1, p.RetryLimit)
	var attempts []Attempt
	var lastErr error

	for i := 1; i <= total; i++ {
		if i > 1 && p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, &CallError{Attempts: attempts, Err: ctx.Err()}
			case <-time.After(p.Backoff << (i - 2)):
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		start := time.Now()
		r, err := call(attemptCtx)
		cancel()
		latency := time.Since(start)

		a := Attempt{AttemptIndex: i, LatencyMS: latency.Milliseconds()}
		if err != nil {
			msg := err.Error()
			a.Status, a.Error = StatusError, &msg
			attempts = append(attempts, a)
			metrics.RecordModelAttempt(p.Provider, StatusError, latency, nil, nil)
			logger.Warn().Err(err).Str("provider", p.Provider).Int("attempt", i).Int("of", total).Msg("model call attempt failed")
			lastErr = err
			continue
		}

		a.Status, a.InputTokens, a.OutputTokens = StatusOK, r.inputTokens, r.outputTokens
		attempts = append(attempts, a)
		metrics.RecordModelAttempt(p.Provider, StatusOK, latency, r.inputTokens, r.outputTokens)
		logger.Debug().Str("provider", p.Provider).Str("model", p.Model).Int("attempt", i).
			Int64("latency_ms", a.LatencyMS).Msg("model call completed")
		return &CallResult{Text: r.text, Raw: r.raw, Attempts: attempts}, nil
	}
	return nil, &CallError{Attempts: attempts, Err: lastErr}
}

func intPtr(n int) *int { return &n }
