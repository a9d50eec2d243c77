package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestWritePrometheus(t *testing.T) {
	ToolCallTotal.WithLabelValues("serper_search_tool", "ok").Inc()
	QueryTotal.WithLabelValues("answered").Inc()

	var buf bytes.Buffer
	if err := WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, name := range []string{"athena_tool_call_total", "athena_query_total"} {
		if !strings.Contains(out, name) {
			t.Errorf("output missing %s", name)
		}
	}
}
