package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data   map[string]string
	getErr error
	setErr error
	sets   int
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string]string{}} }

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.sets++
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	b, _ := value.([]byte)
	f.data[key] = string(b)
	return redis.NewStatusResult("OK", nil)
}

type countingClient struct {
	calls int
	res   *CallResult
	err   error
}

func (c *countingClient) Generate(context.Context, string, string) (*CallResult, error) {
	c.calls++
	return c.res, c.err
}

func okResult() *CallResult {
	return &CallResult{
		Text:     `{"a":1}`,
		Raw:      json.RawMessage(`{"id":"r1"}`),
		Attempts: []Attempt{{AttemptIndex: 1, Status: StatusOK, LatencyMS: 40}},
	}
}

func TestCachedClient_MissCommitHit(t *testing.T) {
	ctx := context.Background()
	next := &countingClient{res: okResult()}
	store := newFakeStore()
	c := NewCachedClient(next, store, testParams(""), time.Hour, zerolog.Nop())

	first, err := c.Generate(ctx, "s", "u")
	require.NoError(t, err)
	require.False(t, first.FromCache())
	require.Empty(t, store.data, "Generate alone never stores")

	_, err = c.Generate(ctx, "s", "u")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls, "an uncommitted response is not replayed")

	require.NoError(t, c.Commit(ctx, "s", "u", first))
	require.Len(t, store.data, 1)

	hit, err := c.Generate(ctx, "s", "u")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
	require.Equal(t, `{"a":1}`, hit.Text)
	require.JSONEq(t, `{"id":"r1"}`, string(hit.Raw))
	require.Equal(t, []Attempt{{AttemptIndex: 1, Status: StatusOK, Cached: true}}, hit.Attempts)
	require.True(t, hit.FromCache())

	_, err = c.Generate(ctx, "s", "different")
	require.NoError(t, err)
	require.Equal(t, 3, next.calls, "a different user message misses")
}

func TestCachedClient_CorruptEntryDiscarded(t *testing.T) {
	ctx := context.Background()
	next := &countingClient{res: okResult()}
	store := newFakeStore()
	c := NewCachedClient(next, store, testParams(""), time.Hour, zerolog.Nop())
	key, err := c.Key("s", "u")
	require.NoError(t, err)
	store.data[key] = "{not json"

	res, err := c.Generate(ctx, "s", "u")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)
	require.False(t, res.FromCache())
	require.Equal(t, `{"a":1}`, res.Text)

	require.NoError(t, c.Commit(ctx, "s", "u", res))
	require.JSONEq(t, `{"text":"{\"a\":1}","raw":{"id":"r1"}}`, store.data[key])
}

func TestCachedClient_ReadFailureFallsThrough(t *testing.T) {
	next := &countingClient{res: okResult()}
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	c := NewCachedClient(next, store, testParams(""), time.Hour, zerolog.Nop())

	res, err := c.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)
	require.Equal(t, `{"a":1}`, res.Text)
}

func TestCachedClient_ErrorsAreNotCached(t *testing.T) {
	next := &countingClient{err: &CallError{Err: errors.New("down")}}
	store := newFakeStore()
	c := NewCachedClient(next, store, testParams(""), time.Hour, zerolog.Nop())

	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	require.Zero(t, store.sets)
}

func TestCachedClient_CommitSkipsReplayedResults(t *testing.T) {
	store := newFakeStore()
	c := NewCachedClient(&countingClient{}, store, testParams(""), time.Hour, zerolog.Nop())

	replayed := &CallResult{Text: "x", Attempts: []Attempt{{AttemptIndex: 1, Status: StatusOK, Cached: true}}}
	require.NoError(t, c.Commit(context.Background(), "s", "u", replayed))
	require.NoError(t, c.Commit(context.Background(), "s", "u", nil))
	require.Zero(t, store.sets)
}

func TestCachedClient_CommitWriteError(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("READONLY")
	c := NewCachedClient(&countingClient{}, store, testParams(""), time.Hour, zerolog.Nop())

	err := c.Commit(context.Background(), "s", "u", okResult())
	require.ErrorContains(t, err, "READONLY")
	require.ErrorContains(t, err, cacheKeyPrefix)
}

func TestCachedClient_KeyCoversParams(t *testing.T) {
	a := NewCachedClient(nil, nil, testParams(""), 0, zerolog.Nop())
	p := testParams("")
	p.Temperature = 0.7
	b := NewCachedClient(nil, nil, p, 0, zerolog.Nop())

	ka, err := a.Key("s", "u")
	require.NoError(t, err)
	kb, err := b.Key("s", "u")
	require.NoError(t, err)
	require.NotEqual(t, ka, kb)
	require.True(t, strings.HasPrefix(ka, cacheKeyPrefix))

	kc, err := a.Key("s", "u2")
	require.NoError(t, err)
	require.NotEqual(t, ka, kc)
}
