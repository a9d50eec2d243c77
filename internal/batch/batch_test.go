package batch

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/internal/grader"
	"github.com/AthenaAgent/athena-dr/internal/storage/result"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

func TestReadItems(t *testing.T) {
	in := strings.Join([]string{
		`{"id": "a", "question": "Q1", "answer": "A1"}`,
		``,
		`{"id": 7, "question": "Q2", "gold": ["A2", "alt"]}`,
		`{"question": "Q3"}`,
	}, "\n")
	items, err := ReadItems(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, Item{ID: "a", Question: "Q1", Answer: "A1"}, items[0])
	assert.Equal(t, Item{ID: "7", Question: "Q2", Answer: "A2"}, items[1])
	assert.Equal(t, Item{ID: "2", Question: "Q3"}, items[2])

	_, err = ReadItems(strings.NewReader(`{"question": ""}`))
	assert.Error(t, err)
	_, err = ReadItems(strings.NewReader(`not json`))
	assert.Error(t, err)
}

type fakeAgent struct {
	run func(question string) (*trace.Result, error)
}

func (f fakeAgent) Run(_ context.Context, q string) (*trace.Result, error) { return f.run(q) }

func answering(calls *int64) grader.AgentFactory {
	return func() grader.Runner {
		return fakeAgent{run: func(q string) (*trace.Result, error) {
			atomic.AddInt64(calls, 1)
			switch q {
			case "boom":
				panic("tool exploded")
			case "fatal":
				return nil, errors.Fatal(stderrors.New("endpoint down"))
			case "budget":
				return &trace.Result{ID: "id-" + q, Question: q, Answer: "partial"}, errors.ErrStepLimitExceeded
			}
			return &trace.Result{ID: "id-" + q, Question: q, Answer: "Paris"}, nil
		}}
	}
}

func TestRunner_ContainsFailuresAndResumes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	store, err := result.NewJSONLStore(path)
	require.NoError(t, err)
	defer store.Close()

	items := []Item{
		{ID: "0", Question: "q0"},
		{ID: "1", Question: "boom"},
		{ID: "2", Question: "fatal"},
		{ID: "3", Question: "budget"},
		{ID: "4", Question: "q4"},
	}
	var calls int64
	r := NewRunner(answering(&calls), store, WithConcurrency(3))

	sum, err := r.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.Saved)
	assert.Equal(t, 2, sum.Failed)

	got, err := store.Get(context.Background(), "id-budget")
	require.NoError(t, err)
	assert.Equal(t, "3", got.ExampleID)
	assert.Equal(t, "partial", got.Answer)

	// 续跑只处理之前失败的问题
	atomic.StoreInt64(&calls, 0)
	sum, err = r.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestRunner_RespectsConcurrency(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		release = make(chan struct{})
	)
	factory := func() grader.Runner {
		return fakeAgent{run: func(q string) (*trace.Result, error) {
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			<-release
			mu.Lock()
			active--
			mu.Unlock()
			return &trace.Result{ID: q, Question: q}, nil
		}}
	}
	var items []Item
	for _, q := range []string{"a", "b", "c", "d", "e", "f"} {
		items = append(items, Item{ID: q, Question: q})
	}
	r := NewRunner(factory, result.NewMemoryStore(), WithConcurrency(2))

	done := make(chan Summary)
	go func() {
		sum, _ := r.Run(context.Background(), items)
		done <- sum
	}()
	for range items {
		release <- struct{}{}
	}
	sum := <-done
	assert.Equal(t, 6, sum.Saved)
	assert.LessOrEqual(t, maxSeen, 2)
}

func TestRunner_WithRetrierMarksCorrect(t *testing.T) {
	var calls int64
	factory := answering(&calls)
	retrier := grader.NewRetrier(factory, grader.NewChecker(nil, 0.9, nil), 2, nil)
	store := result.NewMemoryStore()
	r := NewRunner(factory, store, WithRetrier(retrier), WithMaxExamples(2))

	sum, err := r.Run(context.Background(), []Item{
		{ID: "x", Question: "qx", Answer: "Paris"},
		{ID: "y", Question: "qy", Answer: "London"},
		{ID: "z", Question: "qz", Answer: "Paris"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Correct)

	y, err := store.Get(context.Background(), "id-qy")
	require.NoError(t, err)
	require.NotNil(t, y.Correct)
	assert.False(t, *y.Correct)
	assert.Equal(t, 2, y.Attempts)
	assert.Equal(t, "London", y.Gold)
}
