package toolcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/telemetry"
)

type fakeCaller struct {
	calls    atomic.Int32
	mu       sync.Mutex
	requests []map[string]any
	respond  func(n int32, id string) (json.RawMessage, error)
}

func (f *fakeCaller) Call(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	n := f.calls.Add(1)
	var req map[string]any
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	id, _ := req["id"].(string)
	return f.respond(n, id)
}

func toolsResponse(names ...string) func(int32, string) (json.RawMessage, error) {
	return func(_ int32, id string) (json.RawMessage, error) {
		tools := make([]map[string]any, 0, len(names))
		for _, name := range names {
			tools = append(tools, map[string]any{"name": name, "description": "tool " + name})
		}
		return json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result":  map[string]any{"tools": tools},
		})
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_GetFetchesWhenEmpty(t *testing.T) {
	caller := &fakeCaller{respond: toolsResponse("Lokka-Microsoft", "set-access-token")}
	clock := newFakeClock()
	cache := New(Options{Caller: caller, Now: clock.Now})

	snap, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lokka-Microsoft", "set-access-token"}, snap.Names())
	assert.Equal(t, clock.Now(), snap.FetchedAt)

	require.Len(t, caller.requests, 1)
	assert.Equal(t, "tools/list", caller.requests[0]["method"])
	assert.Equal(t, "tools-list-1", caller.requests[0]["id"])
	assert.Equal(t, map[string]any{}, caller.requests[0]["params"])
}

func TestCache_ServesFromCacheWithinTTL(t *testing.T) {
	caller := &fakeCaller{respond: toolsResponse("a")}
	clock := newFakeClock()
	cache := New(Options{Caller: caller, Now: clock.Now})

	_, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = cache.Get(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, int32(1), caller.calls.Load())
}

func TestCache_RefreshesAfterTTL(t *testing.T) {
	caller := &fakeCaller{respond: toolsResponse("a")}
	clock := newFakeClock()
	cache := New(Options{Caller: caller, Now: clock.Now, TTL: 60 * time.Minute})

	_, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	clock.Advance(60 * time.Minute)
	_, err = cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), caller.calls.Load())

	clock.Advance(time.Millisecond)
	snap, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), caller.calls.Load())
	assert.Equal(t, clock.Now(), snap.FetchedAt)
}

func TestCache_ForceRefresh(t *testing.T) {
	caller := &fakeCaller{respond: toolsResponse("a")}
	cache := New(Options{Caller: caller})

	_, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), caller.calls.Load())
	assert.Equal(t, "tools-list-2", caller.requests[1]["id"])
}

func TestCache_EmptyCatalogRefetched(t *testing.T) {
	caller := &fakeCaller{respond: toolsResponse()}
	cache := New(Options{Caller: caller})

	snap, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.True(t, snap.Fetched())

	_, err = cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), caller.calls.Load())
}

func TestCache_FailureKeepsPreviousSnapshot(t *testing.T) {
	caller := &fakeCaller{}
	caller.respond = func(n int32, id string) (json.RawMessage, error) {
		if n == 1 {
			return toolsResponse("a", "b")(n, id)
		}
		return nil, fmt.Errorf("call: %w", domain.ErrTimeout)
	}
	cache := New(Options{Caller: caller})

	first, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	snap, err := cache.Get(context.Background(), true)
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, 2, snap.Count())
	if diff := cmp.Diff(first.Names(), cache.Snapshot().Names()); diff != "" {
		t.Fatalf("snapshot changed after failed refresh (-want +got):\n%s", diff)
	}
	assert.Equal(t, first.FetchedAt, cache.Snapshot().FetchedAt)
}

func TestCache_UpstreamError(t *testing.T) {
	caller := &fakeCaller{respond: func(_ int32, id string) (json.RawMessage, error) {
		return json.RawMessage(fmt.Sprintf(`{"jsonrpc":"2.0","id":%q,"error":{"code":-32601,"message":"Method not found"}}`, id)), nil
	}}
	cache := New(Options{Caller: caller})

	_, err := cache.Get(context.Background(), false)
	require.ErrorIs(t, err, domain.ErrUpstreamFailure)
	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "Method not found", upstream.Message)
	assert.False(t, cache.Snapshot().Fetched())
}

func TestCache_MissingToolsIsMalformed(t *testing.T) {
	caller := &fakeCaller{respond: func(_ int32, id string) (json.RawMessage, error) {
		return json.RawMessage(`{"jsonrpc":"2.0","id":"x","result":{"content":[]}}`), nil
	}}
	cache := New(Options{Caller: caller})

	_, err := cache.Get(context.Background(), false)
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestCache_DuplicateNamesKeepFirst(t *testing.T) {
	caller := &fakeCaller{respond: func(_ int32, id string) (json.RawMessage, error) {
		return json.RawMessage(`{"jsonrpc":"2.0","id":"x","result":{"tools":[
			{"name":"a","description":"first"},
			{"name":"b"},
			{"name":"a","description":"second"}
		]}}`), nil
	}}
	cache := New(Options{Caller: caller})

	snap, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, snap.Names())
	tool, err := cache.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "first", tool.Description)
}

func TestCache_Lookup(t *testing.T) {
	caller := &fakeCaller{respond: toolsResponse("Lokka-Microsoft", "get-token")}
	cache := New(Options{Caller: caller})

	_, err := cache.Lookup("Lokka-Microsoft")
	require.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.Zero(t, caller.calls.Load())

	_, err = cache.Get(context.Background(), false)
	require.NoError(t, err)

	tool, err := cache.Lookup("Lokka-Microsoft")
	require.NoError(t, err)
	assert.Equal(t, "Lokka-Microsoft", tool.Name)
	assert.JSONEq(t, `{"name":"Lokka-Microsoft","description":"tool Lokka-Microsoft"}`, string(tool.Body))

	_, err = cache.Lookup("nope")
	var notFound *domain.ToolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"Lokka-Microsoft", "get-token"}, notFound.Available)
	assert.Equal(t, int32(1), caller.calls.Load())
}

func TestCache_ConcurrentGetsCollapse(t *testing.T) {
	release := make(chan struct{})
	caller := &fakeCaller{}
	caller.respond = func(n int32, id string) (json.RawMessage, error) {
		<-release
		return toolsResponse("a")(n, id)
	}
	cache := New(Options{Caller: caller})

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Get(context.Background(), false)
			if err == nil && snap.Count() != 1 {
				err = fmt.Errorf("unexpected count %d", snap.Count())
			}
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return caller.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), caller.calls.Load())
}

func TestCache_ReadersNeverSeePartialSnapshot(t *testing.T) {
	var round atomic.Int32
	caller := &fakeCaller{respond: func(n int32, id string) (json.RawMessage, error) {
		names := make([]string, 0, 50)
		for i := 0; i < 50; i++ {
			names = append(names, fmt.Sprintf("r%d-t%d", round.Load(), i))
		}
		return toolsResponse(names...)(n, id)
	}}
	cache := New(Options{Caller: caller})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			round.Store(int32(i))
			_, _ = cache.Get(ctx, true)
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		snap := cache.Snapshot()
		if snap.Empty() {
			continue
		}
		require.Equal(t, 50, snap.Count())
		prefix := snap.Tools[0].Name[:len(snap.Tools[0].Name)-len("-t0")]
		for i, tool := range snap.Tools {
			require.Equal(t, fmt.Sprintf("%s-t%d", prefix, i), tool.Name)
		}
	}
}

func TestCache_SetTTL(t *testing.T) {
	cache := New(Options{})
	assert.Equal(t, 60*time.Minute, cache.TTL())

	cache.SetTTL(time.Minute)
	assert.Equal(t, time.Minute, cache.TTL())

	cache.SetTTL(-1)
	assert.Equal(t, 60*time.Minute, cache.TTL())
}

func TestCache_NilCaller(t *testing.T) {
	cache := New(Options{})
	_, err := cache.Get(context.Background(), false)
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func TestCache_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)
	caller := &fakeCaller{respond: toolsResponse("a", "b", "c")}
	cache := New(Options{Caller: caller, Metrics: metrics})

	_, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "lokkagw_catalog_refreshes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "lokkagw_catalog_tools" {
			assert.Equal(t, 3.0, family.GetMetric()[0].GetGauge().GetValue())
			return
		}
	}
	t.Fatal("lokkagw_catalog_tools not gathered")
}

func TestCache_ETagTracksChanges(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	names := []string{"foo"}
	caller := &fakeCaller{respond: func(n int32, id string) (json.RawMessage, error) {
		return toolsResponse(names...)(n, id)
	}}
	cache := New(Options{Caller: caller, TTL: time.Hour, Logger: zap.New(core)})

	first, err := cache.Get(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, first.ETag)

	second, err := cache.Get(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, first.ETag, second.ETag)

	names = []string{"foo", "bar"}
	third, err := cache.Get(context.Background(), true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, third.ETag)

	var changed []bool
	for _, entry := range logs.FilterMessage("tool catalog refreshed").All() {
		changed = append(changed, entry.ContextMap()["changed"].(bool))
	}
	assert.Equal(t, []bool{true, false, true}, changed)
}
