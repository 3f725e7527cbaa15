package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leozzy13/Health-Benchmark/internal/llm"
	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
	"github.com/leozzy13/Health-Benchmark/internal/prompt"
	"github.com/leozzy13/Health-Benchmark/internal/validate"
)

// ErrGenerationFailed is matched by every GenerationError.
var ErrGenerationFailed = errors.New("generation failed")

// GenerationError ends an admission after the attempt budget is spent or
// the transport gives up.
type GenerationError struct {
	Attempts         []llm.Attempt
	ValidationErrors []string
	msg              string
	cause            error
}

func (e *GenerationError) Error() string { return e.msg }

func (e *GenerationError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrGenerationFailed, e.cause}
	}
	return []error{ErrGenerationFailed}
}

type generation struct {
	result   *llm.CallResult
	response *validate.Response
	warnings []validate.Issue
}

func renumber(attempts []llm.Attempt) {
	for i := range attempts {
		attempts[i].AttemptIndex = i + 1
	}
}

// generate calls the model until a response validates, at most
// max(1, retryLimit) times. Repairs always extend the original user
// message, never a previous repair. The returned attempt log spans every
// call, numbered from 1. Only the accepted response is committed to a
// caching client.
func generate(ctx context.Context, client llm.Client, system, user string, ev validate.Evidence,
	retryLimit int, strict bool, logger zerolog.Logger) (*generation, error) {

	maxAttempts := max(1, retryLimit)
	current := user
	var attempts []llm.Attempt
	var failures []string

	for i := 1; i <= maxAttempts; i++ {
		res, err := client.Generate(ctx, system, current)
		if err != nil {
			attempts = append(attempts, llm.Attempts(err)...)
			renumber(attempts)
			return nil, &GenerationError{Attempts: attempts, ValidationErrors: failures, msg: err.Error(), cause: err}
		}
		attempts = append(attempts, res.Attempts...)

		vr := validate.Validate(res.Text, ev, strict)
		if !vr.Rejected {
			for _, is := range vr.Issues {
				logger.Warn().Str("kind", string(is.Kind)).Msg(is.Message)
			}
			if cm, ok := client.(llm.Committer); ok {
				if err := cm.Commit(ctx, system, current, res); err != nil {
					logger.Warn().Err(err).Msg("cache write failed")
				}
			}
			renumber(attempts)
			res.Attempts = attempts
			return &generation{result: res, response: vr.Response, warnings: vr.Issues}, nil
		}

		verr := vr.Err()
		metrics.RecordValidationFailure(string(vr.Issues[0].Kind))
		logger.Warn().Err(verr).Str("kind", string(vr.Issues[0].Kind)).
			Int("schema_attempt", i).Int("of", maxAttempts).Msg("model response rejected")
		failures = append(failures, verr.Error())
		current = prompt.AppendRepair(user)
	}

	renumber(attempts)
	msg := fmt.Sprintf("Model response failed validation after %d schema attempts: %s",
		maxAttempts, strings.Join(failures, " | "))
	return nil, &GenerationError{Attempts: attempts, ValidationErrors: failures, msg: msg}
}
