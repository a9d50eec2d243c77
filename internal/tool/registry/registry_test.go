package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AthenaAgent/athena-dr/internal/agent/citation"
	"github.com/AthenaAgent/athena-dr/internal/storage/cache"
	"github.com/AthenaAgent/athena-dr/internal/tool"
	apperrors "github.com/AthenaAgent/athena-dr/pkg/errors"
)

type echoTool struct {
	name  string
	calls atomic.Int32
	block bool
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echo query" }
func (e *echoTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string"},
			"limit": {Type: "integer"},
		},
		Required: []string{"query"},
	}
}
func (e *echoTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	e.calls.Add(1)
	if e.block {
		<-ctx.Done()
		return tool.ToolResult{}, ctx.Err()
	}
	q, _ := input["query"].(string)
	return tool.ToolResult{Content: "[echo_1] " + q}, nil
}
func (e *echoTool) SnippetPrefixes() []string { return []string{"echo_"} }

func TestRegistry_RegisterAddsSnippetPrefix(t *testing.T) {
	prefixes := citation.NewRegistry()
	reg := New(WithPrefixRegistry(prefixes))
	reg.Register(&echoTool{name: "echo"})

	assert.True(t, prefixes.Match("echo_1"))
	obs := prefixes.ExtractObservation("see [echo_1] and [other_2]")
	assert.Equal(t, []string{"echo_1"}, obs.SnippetIDs)
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := New()
	reg.Register(&echoTool{name: "zeta"})
	reg.Register(&echoTool{name: "alpha"})
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())

	specs, err := reg.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Contains(t, string(specs[0].Parameters), `"required":["query"]`)
}

func TestDispatch_UnknownTool(t *testing.T) {
	reg := New()
	_, err := reg.Dispatch(context.Background(), "missing", "call_0", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrToolNotFound))
}

func TestDispatch_InvalidArguments(t *testing.T) {
	reg := New()
	reg.Register(&echoTool{name: "echo"})
	_, err := reg.Dispatch(context.Background(), "echo", "call_0", map[string]any{"limit": 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArg))
}

func TestDispatch_ConformsScalarTypes(t *testing.T) {
	reg := New()
	reg.Register(&echoTool{name: "echo"})
	res, err := reg.Dispatch(context.Background(), "echo", "call_0", map[string]any{"query": 2024, "limit": "5"})
	require.NoError(t, err)
	assert.Equal(t, "[echo_1] 2024", res.Content)
}

func TestDispatch_CachesSuccessfulResults(t *testing.T) {
	e := &echoTool{name: "echo"}
	reg := New(WithCache(cache.NewMemoryStore(), time.Minute))
	reg.Register(e)

	for i := 0; i < 3; i++ {
		res, err := reg.Dispatch(context.Background(), "echo", "call_0", map[string]any{"query": "go"})
		require.NoError(t, err)
		assert.Equal(t, "[echo_1] go", res.Content)
	}
	assert.Equal(t, int32(1), e.calls.Load())
}

func TestDispatch_Timeout(t *testing.T) {
	reg := New(WithTimeout(20 * time.Millisecond))
	reg.Register(&echoTool{name: "slow", block: true})
	_, err := reg.Dispatch(context.Background(), "slow", "call_0", map[string]any{"query": "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
}

func TestDispatch_RateLimiterReleasesSlot(t *testing.T) {
	limiter := NewToolRateLimiter(map[string]ToolLimitConfig{
		"echo": {QPS: 1000, MaxConcurrent: 1, Burst: 1000},
	}, nil)
	reg := New(WithRateLimiter(limiter))
	reg.Register(&echoTool{name: "echo"})

	for i := 0; i < 3; i++ {
		_, err := reg.Dispatch(context.Background(), "echo", "call_0", map[string]any{"query": "q"})
		require.NoError(t, err)
	}
	stats := limiter.GetStats("echo")
	assert.Equal(t, 0, stats["current_concurrent"])
}

func TestRegistry_RateLimitStats(t *testing.T) {
	limiter := NewToolRateLimiter(map[string]ToolLimitConfig{
		"echo": {QPS: 1000, MaxConcurrent: 2, Burst: 1000},
	}, nil)
	reg := New(WithRateLimiter(limiter))
	reg.Register(&echoTool{name: "echo"})
	reg.Register(&echoTool{name: "idle"})

	_, err := reg.Dispatch(context.Background(), "echo", "call_0", map[string]any{"query": "q"})
	require.NoError(t, err)

	stats := reg.RateLimitStats()
	require.Contains(t, stats, "echo")
	assert.NotContains(t, stats, "idle", "tools without a configured or used limiter are omitted")
	assert.Equal(t, 2, stats["echo"]["max_concurrent"])
	assert.Equal(t, 2, stats["echo"]["available_slots"])

	_, err = reg.Dispatch(context.Background(), "idle", "call_1", map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.Contains(t, reg.RateLimitStats(), "idle")

	assert.Empty(t, New().RateLimitStats())
}

type scopedTool struct{ echoTool }

func (s *scopedTool) QuestionScoped() bool { return true }

func TestDispatch_QuestionScopedCacheKey(t *testing.T) {
	s := &scopedTool{echoTool{name: "reader"}}
	reg := New(WithCache(cache.NewMemoryStore(), time.Minute))
	reg.Register(s)

	args := map[string]any{"query": "https://example.com"}
	for _, q := range []string{"who", "who", "when"} {
		ctx := tool.WithQuestion(context.Background(), q)
		_, err := reg.Dispatch(ctx, "reader", "call_0", args)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), s.calls.Load())
}
