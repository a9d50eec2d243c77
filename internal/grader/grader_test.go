package grader

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/pkg/config"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "eiffel tower", Normalize("The Eiffel   Tower!"))
	assert.Equal(t, "1969", Normalize("$1,969."))
	assert.Equal(t, "apple", Normalize("An apple"))
}

func TestF1(t *testing.T) {
	assert.Equal(t, 1.0, F1("The Eiffel Tower", "eiffel tower"))
	assert.Equal(t, 0.0, F1("London", "Paris"))
	assert.Equal(t, 0.0, F1("", "Paris"))
	// pred: paris france (2), gold: paris (1) -> p=0.5 r=1
	assert.True(t, math.Abs(F1("Paris, France", "Paris")-2.0/3.0) < 1e-9)
	// 多重集：重复词只按较小计数匹配
	assert.True(t, math.Abs(F1("new new york", "new york")-0.8) < 1e-9)
}

func TestIsCorrectVerdict(t *testing.T) {
	assert.True(t, IsCorrectVerdict("A"))
	assert.True(t, IsCorrectVerdict(" a\n"))
	assert.False(t, IsCorrectVerdict("B"))
	assert.False(t, IsCorrectVerdict("A: CORRECT"))
}

type stubGrader struct {
	verdict bool
	err     error
	calls   int32
}

func (s *stubGrader) Grade(context.Context, string, string, string) (bool, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.verdict, s.err
}

func TestChecker(t *testing.T) {
	g := &stubGrader{verdict: true}
	c := NewChecker(g, 0, nil)

	ok, err := c.Check(context.Background(), "q", "Paris", "paris")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(0), g.calls, "high F1 skips the grader")

	ok, err = c.Check(context.Background(), "q", "Paris", "The French capital city")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), g.calls)

	noGrader := NewChecker(nil, 0.9, nil)
	ok, err = noGrader.Check(context.Background(), "q", "Paris", "Lyon")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLLMGrader_OpenAICompatible(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) > 0 {
			gotPrompt = body.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"` + body.Model + `",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"A"}}],` +
			`"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`))
	}))
	defer srv.Close()

	g, err := NewLLMGrader(config.GraderConfig{Provider: "openai", Model: "gpt-4.1", APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	ok, err := g.Grade(context.Background(), "Capital of France?", "Paris", "It is Paris")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, gotPrompt, "Gold target: Paris")
	assert.Contains(t, gotPrompt, "Predicted answer: It is Paris")
}

func TestNewLLMGrader_Validation(t *testing.T) {
	_, err := NewLLMGrader(config.GraderConfig{Provider: "openai"})
	assert.Error(t, err)
	_, err = NewLLMGrader(config.GraderConfig{Provider: "azure", Model: "gpt-4.1"})
	assert.Error(t, err)
	_, err = NewLLMGrader(config.GraderConfig{Provider: "bedrock", Model: "m"})
	assert.Error(t, err)
}

type scriptedRunner struct {
	answers []string
	errs    []error
	n       *int32
}

func (s scriptedRunner) Run(context.Context, string) (*trace.Result, error) {
	i := int(atomic.AddInt32(s.n, 1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		if errors.IsBudgetExceeded(s.errs[i]) {
			return &trace.Result{ID: "partial", Answer: s.answers[i]}, s.errs[i]
		}
		return nil, s.errs[i]
	}
	return &trace.Result{ID: "r", Answer: s.answers[i]}, nil
}

func factoryFor(answers []string, errs []error) (AgentFactory, *int32) {
	n := new(int32)
	return func() Runner { return scriptedRunner{answers: answers, errs: errs, n: n} }, n
}

func TestRetrier_AcceptsSecondAttempt(t *testing.T) {
	factory, n := factoryFor([]string{"Lyon", "Paris", "Paris"}, nil)
	r := NewRetrier(factory, NewChecker(nil, 0.9, nil), 5, nil)

	res, ok, err := r.Run(context.Background(), "q", "Paris")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), *n)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	factory, n := factoryFor([]string{"a", "b", "c"}, nil)
	r := NewRetrier(factory, NewChecker(nil, 0.9, nil), 3, nil)

	res, ok, err := r.Run(context.Background(), "q", "Paris")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "c", res.Answer)
	assert.Equal(t, int32(3), *n)
}

func TestRetrier_GradesPartialAndSkipsFatal(t *testing.T) {
	fatal := errors.Fatal(stderrors.New("endpoint down"))
	factory, _ := factoryFor(
		[]string{"", "Paris"},
		[]error{fatal, errors.ErrTokenLimitExceeded},
	)
	r := NewRetrier(factory, NewChecker(nil, 0.9, nil), 5, nil)

	res, ok, err := r.Run(context.Background(), "q", "Paris")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "partial", res.ID)
	assert.Equal(t, 2, res.Attempts)
}

func TestRetrier_AllFatal(t *testing.T) {
	fatal := errors.Fatal(stderrors.New("endpoint down"))
	factory, _ := factoryFor([]string{"", ""}, []error{fatal, fatal})
	r := NewRetrier(factory, NewChecker(nil, 0.9, nil), 2, nil)

	res, ok, err := r.Run(context.Background(), "q", "Paris")
	assert.Nil(t, res)
	assert.False(t, ok)
	assert.ErrorIs(t, err, errors.ErrFatal)
}
