package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObservation(t *testing.T) {
	r := NewRegistry()
	obs := r.ExtractObservation("[serper_1] Paris\nURL: https://en.wikipedia.org/wiki/Paris\nSnippet: capital\n" +
		"[serper_2] France\nURL: https://example.com/fr\n" +
		"See [the docs](https://x.y) and [1] and [serper_1] again.\n" +
		"[jina_c984d06a] Example Domain\nURL: https://example.com/fr\n")

	assert.Equal(t, []string{"serper_1", "serper_2", "jina_c984d06a"}, obs.SnippetIDs)
	assert.Equal(t, []string{"https://en.wikipedia.org/wiki/Paris", "https://example.com/fr"}, obs.URLs)
}

func TestRegistry_SelfRegisteredPrefix(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Match("pdf_1"))
	r.Register("pdf_")
	assert.True(t, r.Match("pdf_1"))
	assert.False(t, r.Match("pdf_"), "bare prefix is not an id")
	assert.Contains(t, r.Prefixes(), "pdf_")
}

func TestExtractCited(t *testing.T) {
	answer := `Paris is the capital <cite id="serper_1, s2_paper_3">claim</cite> and <cite id='serper_1'>again</cite> <cite id=" ,pubmed_2">x</cite>`
	assert.Equal(t, []string{"serper_1", "s2_paper_3", "pubmed_2"}, ExtractCited(answer))
	assert.Empty(t, ExtractCited("no citations"))
}

func TestProvenance_FirstSeenWins(t *testing.T) {
	p := NewProvenance()
	p.Record([]string{"s2_paper_1"}, "semantic_scholar_paper_search", 2)
	p.Record([]string{"s2_paper_1", "serper_4"}, "serper_search_tool", 5)

	src, ok := p.Lookup("s2_paper_1")
	require.True(t, ok)
	assert.Equal(t, Source{Tool: "semantic_scholar_paper_search", Step: 2}, src)

	src, ok = p.Lookup("serper_4")
	require.True(t, ok)
	assert.Equal(t, 5, src.Step)
	assert.Equal(t, 2, p.Len())
}

func TestProvenance_ResolveFlagsHallucination(t *testing.T) {
	p := NewProvenance()
	p.Record([]string{"serper_1"}, "serper_search_tool", 1)

	usages := p.Resolve(ExtractCited(`<cite id="serper_1,serper_99">x</cite>`))
	require.Len(t, usages, 2)

	assert.Equal(t, "serper_search_tool", usages[0].Tool)
	require.NotNil(t, usages[0].Step)
	assert.Equal(t, 1, *usages[0].Step)

	assert.Equal(t, "serper_99", usages[1].ID)
	assert.Equal(t, UnknownTool, usages[1].Tool)
	assert.Nil(t, usages[1].Step)
	assert.Equal(t, 1, CountHallucinated(usages))
}
