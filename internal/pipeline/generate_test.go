package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/leozzy13/Health-Benchmark/internal/llm"
	"github.com/leozzy13/Health-Benchmark/internal/prompt"
	"github.com/leozzy13/Health-Benchmark/internal/validate"
)

type memoryCache struct {
	entries map[string]string
}

func (m *memoryCache) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.entries[key] = string(v)
	default:
		m.entries[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func TestGenerate_CachesOnlyAcceptedResponse(t *testing.T) {
	ctx := context.Background()
	bad, good := response(2, "wrong turn ids"), response(1, "accepted")
	inner := &scriptedClient{texts: []string{bad, bad, good}}
	store := &memoryCache{entries: map[string]string{}}
	cc := llm.NewCachedClient(inner, store, llm.Params{Provider: "openai", Model: "m"}, time.Hour, zerolog.Nop())
	ev := validate.Evidence{
		Known:        map[string]bool{"DS#000001": true, "PT#000001": true, "ADM#000001": true},
		PatientEID:   "PT#000001",
		AdmissionEID: "ADM#000001",
	}

	gen, err := generate(ctx, cc, "system", "user", ev, 3, false, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, good, gen.result.Text)
	require.Len(t, inner.users, 3, "the second repair reaches the model instead of a cached rejection")
	require.Equal(t, inner.users[1], inner.users[2])
	require.Len(t, gen.result.Attempts, 3)
	for _, a := range gen.result.Attempts {
		require.False(t, a.Cached)
	}

	require.Len(t, store.entries, 1)
	key, err := cc.Key("system", prompt.AppendRepair("user"))
	require.NoError(t, err)
	require.Contains(t, store.entries[key], "accepted")
	require.False(t, strings.Contains(store.entries[key], "wrong turn ids"))

	again, err := generate(ctx, cc, "system", "user", ev, 3, false, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, good, again.result.Text)
	require.Len(t, inner.users, 4, "the original prompt was never committed")
	require.Len(t, store.entries, 2)
}
