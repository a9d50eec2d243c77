package toolcall

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_TagFormat(t *testing.T) {
	in := "Let me search.\n<tool_call>\n<tool_name>serper_search_tool</tool_name>\n<query>hello world</query>\n<timeout>30</timeout>\n</tool_call>"
	rest, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "call_0", calls[0].ID)
	assert.Equal(t, "serper_search_tool", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "hello world", "timeout": 30}, calls[0].Arguments)
	assert.Equal(t, FormatTag, calls[0].Format)
	assert.Equal(t, "Let me search.", rest)
}

func TestExtract_TagFallbackOnBrokenMarkup(t *testing.T) {
	in := "<tool_call>\n<tool_name>serper_search_tool</tool_name>\n<query>AT&T founding year</query>\n<num_results>5</num_results>\n</tool_call>"
	rest, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "serper_search_tool", calls[0].Name)
	assert.Equal(t, "AT&T founding year", calls[0].Arguments["query"])
	assert.Equal(t, 5, calls[0].Arguments["num_results"])
	assert.Empty(t, rest)
}

func TestExtract_TagWithoutNameStaysInText(t *testing.T) {
	in := "<tool_call><query>orphan</query></tool_call>"
	rest, calls := Extract(in)
	assert.Nil(t, calls)
	assert.Equal(t, in, rest)
}

func TestExtract_TagSkipsEmptyElements(t *testing.T) {
	in := "<tool_call><tool_name>jina_fetch_webpage_content</tool_name><url>https://example.com/?a=1&amp;b=2</url><empty/></tool_call>"
	_, calls := Extract(in)
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"url": "https://example.com/?a=1&b=2"}, calls[0].Arguments)
}

func TestExtract_InvokeFormat(t *testing.T) {
	in := "<invoke><semantic_scholar_paper_search>\n<query>search terms</query>\n<year>2020-2025</year>\n<limit>15</limit>\n<venue> </venue>\n</semantic_scholar_paper_search></invoke>"
	rest, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "semantic_scholar_paper_search", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "search terms", "year": "2020-2025", "limit": 15}, calls[0].Arguments)
	assert.Empty(t, rest)
}

func TestExtract_InvokeEscapedNewlines(t *testing.T) {
	in := `<invoke><pubmed_search>\n<query>crispr</query>\n<limit>3</limit>\n</pubmed_search></invoke>`
	_, calls := Extract(in)
	require.Len(t, calls, 1)
	assert.Equal(t, "pubmed_search", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "crispr", "limit": 3}, calls[0].Arguments)
}

func TestExtract_BracketArrow(t *testing.T) {
	in := "[TOOL_CALL]\n{tool => \"serper_search_tool\", args => {\n  --query \"deep research agents\"\n  --num_results 5\n  --year \"2020\"\n}}\n[/TOOL_CALL]"
	rest, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "serper_search_tool", calls[0].Name)
	assert.Equal(t, map[string]any{
		"query":       "deep research agents",
		"num_results": 5,
		"year":        "2020",
	}, calls[0].Arguments)
	assert.Empty(t, rest)
}

func TestExtract_BracketSingleQuotedJSON(t *testing.T) {
	in := "[TOOL_CALL]\n{ 'name': 'pubmed_search', 'args': {\n  'query': 'crispr off-target',\n  'limit': 10\n}}\n[/TOOL_CALL]"
	_, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "pubmed_search", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "crispr off-target", "limit": 10}, calls[0].Arguments)
}

func TestExtract_BracketMalformedJSONFallsBackToRegex(t *testing.T) {
	in := "[TOOL_CALL]{'name': 'pubmed_search', 'args': {'query': 'crispr', 'limit': 3,},}[/TOOL_CALL]"
	_, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "pubmed_search", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "crispr", "limit": 3}, calls[0].Arguments)
}

func TestExtract_ActionScenario(t *testing.T) {
	in := "Action:\n{\"name\": \"serper_search_tool\", \"arguments\": {\"query\": \"capital of France\"}}"
	rest, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "call_0", calls[0].ID)
	assert.Equal(t, "serper_search_tool", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "capital of France"}, calls[0].Arguments)
	assert.Empty(t, rest)
}

func TestExtract_ActionNestedTypesPreserved(t *testing.T) {
	in := `Action: {"name": "semantic_scholar_paper_search", "arguments": {"query": "rlhf", "limit": 10, "min_score": 0.5, "filters": {"year": "2023"}}}`
	_, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, 10, calls[0].Arguments["limit"])
	assert.Equal(t, 0.5, calls[0].Arguments["min_score"])
	assert.Equal(t, map[string]any{"year": "2023"}, calls[0].Arguments["filters"])
}

func TestExtract_ActionMalformedJSONFallsBackToRegex(t *testing.T) {
	in := `Action: {"name": "pubmed_search", "arguments": {"query": "x", "limit": 5, "ratio": 1.5, "sort": relevance}}`
	_, calls := Extract(in)

	require.Len(t, calls, 1)
	assert.Equal(t, "pubmed_search", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "x", "limit": 5, "ratio": 1.5, "sort": "relevance"}, calls[0].Arguments)
}

func TestExtract_ActionStripsDanglingCite(t *testing.T) {
	in := "Searching now.\nAction: {\"name\": \"serper_search_tool\", \"arguments\": {\"query\": \"q\"}}\n<cite id=\"x\"></cite>\n---"
	rest, calls := Extract(in)
	require.Len(t, calls, 1)
	assert.Equal(t, "Searching now.", rest)
}

func TestExtract_EventListWithAliases(t *testing.T) {
	in := `[Event: {"tool_calls": [{"query": "q1", "search_type": "scholarly_search"}, {"query": "q2", "tool": "web_search", "num": 5}]}]`
	rest, calls := Extract(in)

	require.Len(t, calls, 2)
	assert.Equal(t, "semantic_scholar_paper_search", calls[0].Name)
	assert.Equal(t, map[string]any{"query": "q1"}, calls[0].Arguments)
	assert.Equal(t, "serper_search_tool", calls[1].Name)
	assert.Equal(t, map[string]any{"query": "q2", "num": 5}, calls[1].Arguments)
	assert.Empty(t, rest)
}

func TestExtract_EventWebpageShorthand(t *testing.T) {
	for _, in := range []string{
		`[Event: {"tool_calls": {"webpage_url": "https://example.com"}}]`,
		`[Event: {"webpage_url": "https://example.com"}]`,
	} {
		_, calls := Extract(in)
		require.Len(t, calls, 1, in)
		assert.Equal(t, FetchToolName, calls[0].Name)
		assert.Equal(t, map[string]any{"url": "https://example.com"}, calls[0].Arguments)
	}
}

func TestExtract_CustomAliases(t *testing.T) {
	ex := NewExtractor(WithAliases(map[string]string{"sports": "the_sports_db_search_tool"}))
	_, calls := ex.Extract(`[Event: {"tool_calls": [{"tool": "sports", "query": "arsenal"}]}]`)
	require.Len(t, calls, 1)
	assert.Equal(t, "the_sports_db_search_tool", calls[0].Name)
}

func TestExtract_MixedFormatsRenumbered(t *testing.T) {
	in := "<tool_call><tool_name>a</tool_name></tool_call>\n" +
		"<invoke><b><q>1</q></b></invoke>\n" +
		"[TOOL_CALL]{tool => \"c\", args => {--x y}}[/TOOL_CALL]\n" +
		"Action: {\"name\": \"d\", \"arguments\": {}}\n" +
		`[Event: {"webpage_url": "https://e.example"}]` + "\n" +
		"<tool_call><tool_name>f</tool_name></tool_call>"
	rest, calls := Extract(in)

	require.Len(t, calls, 6)
	names := make([]string, len(calls))
	for i, c := range calls {
		assert.Equal(t, fmt.Sprintf("call_%d", i), c.ID)
		names[i] = c.Name
	}
	assert.Equal(t, []string{"a", "f", "b", "c", "d", FetchToolName}, names)
	assert.Empty(t, rest)
}

func TestExtract_MalformedBlockLeftInPlace(t *testing.T) {
	in := "<tool_call><tool_name>ok</tool_name></tool_call>\n[TOOL_CALL]not a call[/TOOL_CALL]"
	rest, calls := Extract(in)
	require.Len(t, calls, 1)
	assert.Equal(t, "[TOOL_CALL]not a call[/TOOL_CALL]", rest)
}

func TestExtract_Idempotent(t *testing.T) {
	inputs := []string{
		"<tool_call><tool_name>a</tool_name><q>1</q></tool_call> tail",
		"[TOOL_CALL]broken[/TOOL_CALL] Action: {not json} [Event: {bad}]",
		"Action:\n{\"name\": \"serper_search_tool\", \"arguments\": {\"query\": \"x\"}}",
		"plain answer <answer>42</answer>",
	}
	for _, in := range inputs {
		rest, _ := Extract(in)
		again, calls := Extract(rest)
		assert.Nil(t, calls, in)
		assert.Equal(t, rest, again, in)
	}
}

func TestExtract_NoCalls(t *testing.T) {
	rest, calls := Extract("The answer is <answer>Paris</answer>.")
	assert.Nil(t, calls)
	assert.Equal(t, "The answer is <answer>Paris</answer>.", rest)

	rest, calls = Extract("")
	assert.Nil(t, calls)
	assert.Empty(t, rest)
}

func TestCallArgumentsJSON(t *testing.T) {
	c := Call{Name: "x", Arguments: map[string]any{"limit": 3}}
	assert.JSONEq(t, `{"limit":3}`, c.ArgumentsJSON())
	assert.Equal(t, "{}", Call{}.ArgumentsJSON())
}

func TestFromNative(t *testing.T) {
	c := FromNative("call_abc", "pubmed_search", `{"query":"LRP1","limit":5,"score":0.5,"filters":{"year":2024}}`)
	assert.Equal(t, FormatNative, c.Format)
	assert.Equal(t, "LRP1", c.Arguments["query"])
	assert.Equal(t, 5, c.Arguments["limit"])
	assert.Equal(t, 0.5, c.Arguments["score"])
	assert.Equal(t, map[string]any{"year": 2024}, c.Arguments["filters"])

	bad := FromNative("call_x", "pubmed_search", `{"query":`)
	assert.Empty(t, bad.Arguments)
	assert.NotNil(t, bad.Arguments)
}
