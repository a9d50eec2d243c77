package middleware

import "testing"

func TestDetermineAction(t *testing.T) {
	cases := map[string]string{
		"POST /api/research":   "run_research",
		"GET /api/results/abc": "view_result",
		"GET /api/tools":       "list_tools",
		"POST /api/login":      "login",
		"GET /metrics":         "unknown",
	}
	for in, want := range cases {
		var method, path string
		for i := range in {
			if in[i] == ' ' {
				method, path = in[:i], in[i+1:]
				break
			}
		}
		if got := determineAction(method, path); got != want {
			t.Errorf("determineAction(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractResource(t *testing.T) {
	typ, id := extractResource("/api/results/run-1")
	if typ != "result" || id != "run-1" {
		t.Errorf("got %s/%s", typ, id)
	}
	typ, id = extractResource("/api/tools")
	if typ != "tool" || id != "" {
		t.Errorf("got %s/%s", typ, id)
	}
}
