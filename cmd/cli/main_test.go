package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
)

func TestParseAskArgs(t *testing.T) {
	a, err := parseAskArgs([]string{"-type", "exact", "who", "wrote", "Dune?", "--gold", "Frank Herbert"})
	require.NoError(t, err)
	assert.Equal(t, "who wrote Dune?", a.question)
	assert.Equal(t, "exact", a.answerType)
	assert.Equal(t, "Frank Herbert", a.gold)

	_, err = parseAskArgs([]string{"-type", "exact"})
	assert.ErrorIs(t, err, errNoQuestion)

	_, err = parseAskArgs([]string{"q", "-gold"})
	assert.Error(t, err)

	_, err = parseAskArgs([]string{"-type", "poem", "q"})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	ok := true
	r := &trace.Result{ID: "r1", Status: "answered", Answer: "42", TotalToolCalls: 3, FailedToolCalls: 1, Correct: &ok, Attempts: 2}
	r.TotalTokens.Total = 128
	s := summarize(r)
	assert.Contains(t, s, "r1")
	assert.Contains(t, s, "3 (1 failed)")
	assert.Contains(t, s, "correct:  true (attempts 2)")
	assert.True(t, strings.HasSuffix(s, "42\n"))
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/research", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		switch body["question"] {
		case "bad":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
		case "partial":
			_, _ = w.Write([]byte(`{"result":{"id":"p1","status":"step_limit_exceeded"},"error":"step limit exceeded"}`))
		default:
			_, _ = w.Write([]byte(`{"result":{"id":"a1","question":"` + body["question"] + `","answer":"yes","status":"answered"}}`))
		}
	})
	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"a1"},{"id":"a0"}],"total":2}`))
	})
	mux.HandleFunc("/api/tools", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tools":[{"name":"google_search","description":"web search","parameters":{}}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Setenv("ATHENA_API_URL", srv.URL)
	t.Setenv("ATHENA_TOKEN", "tok")
	return srv
}

func TestClient(t *testing.T) {
	newTestAPI(t)

	res, err := ask("is it?", "short", "")
	require.NoError(t, err)
	assert.Equal(t, "yes", res.Answer)

	res, err = ask("partial", "", "")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "p1", res.ID)

	res, err = ask("bad", "", "")
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "model unavailable")

	list, err := listResults(2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	tools, err := listTools()
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "google_search", tools[0].Name)
}
