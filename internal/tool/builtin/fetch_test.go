package builtin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/internal/tool/registry"
	"github.com/AthenaAgent/athena-dr/pkg/config"
)

func TestJinaTool_FormatsPage(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/https://example.com/a", r.URL.Path)
		assert.Equal(t, "Bearer jk", r.Header.Get("Authorization"))
		return http.StatusOK, map[string]any{"data": map[string]any{
			"url": "https://example.com/a", "title": "Example", "content": "Body text", "publishedTime": "2024-01-01",
		}}
	})
	tl := NewJinaTool(Endpoint{APIKey: "jk", BaseURL: srv.URL})
	res, err := tl.Execute(context.Background(), map[string]any{"webpage_url": "https://example.com/a"})
	require.NoError(t, err)
	require.Empty(t, res.Err)
	id := JinaSnippetID("https://example.com/a")
	assert.Len(t, id, len("jina_")+8)
	assert.Equal(t, "["+id+"] Example\nURL: https://example.com/a\nPublished: 2024-01-01\n\nBody text", res.Content)
}

func TestJinaTool_MissingKey(t *testing.T) {
	tl := NewJinaTool(Endpoint{})
	res, err := tl.Execute(context.Background(), map[string]any{"webpage_url": "https://example.com"})
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Content, "Error fetching URL: https://example.com")
}

func TestCrawl4AITool_BM25Filter(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/md", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bm25", req["f"])
		assert.Equal(t, "pricing", req["q"])
		return http.StatusOK, map[string]any{"url": req["url"], "success": true, "markdown": "See [docs](https://x.dev) for pricing"}
	})
	tl := NewCrawl4AITool(Endpoint{BaseURL: srv.URL})
	res, err := tl.Execute(context.Background(), map[string]any{"url": "https://x.dev", "bm25_query": "pricing"})
	require.NoError(t, err)
	require.Empty(t, res.Err)
	assert.Contains(t, res.Content, "URL: https://x.dev\n\nSee docs for pricing")
	assert.Regexp(t, `^\[crawl4ai_[0-9a-f]{8}\] https://x.dev`, res.Content)
}

func TestCrawl4AITool_Failure(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		return http.StatusOK, map[string]any{"success": false, "error": "net::ERR_NAME_NOT_RESOLVED"}
	})
	tl := NewCrawl4AITool(Endpoint{BaseURL: srv.URL})
	res, err := tl.Execute(context.Background(), map[string]any{"url": "https://nope.invalid"})
	require.NoError(t, err)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", res.Err)
}

const esearchXML = `<?xml version="1.0"?>
<eSearchResult><Count>42</Count><RetMax>1</RetMax><RetStart>0</RetStart><IdList><Id>39355906</Id></IdList></eSearchResult>`

const efetchXML = `<?xml version="1.0"?>
<PubmedArticleSet>
 <PubmedArticle>
  <MedlineCitation>
   <PMID Version="1">39355906</PMID>
   <Article>
    <Journal><JournalIssue><PubDate><Year>2024</Year></PubDate></JournalIssue><Title>Circulation</Title></Journal>
    <ArticleTitle><i>LRP1</i> Repression by SNAIL Results in ECM Remodeling.</ArticleTitle>
    <Abstract>
     <AbstractText Label="BACKGROUND">Vascular &amp; genetic risk.</AbstractText>
    </Abstract>
    <AuthorList><Author><LastName>Doe</LastName><ForeName>Jane</ForeName></Author></AuthorList>
   </Article>
  </MedlineCitation>
 </PubmedArticle>
</PubmedArticleSet>`

func TestPubMedTool(t *testing.T) {
	eutils := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		assert.Equal(t, "me@example.com", r.URL.Query().Get("email"))
		switch r.URL.Path {
		case "/esearch.fcgi":
			_, _ = w.Write([]byte(esearchXML))
		case "/efetch.fcgi":
			assert.Equal(t, "39355906", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(efetchXML))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer eutils.Close()
	s2 := jsonServer(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/paper/batch", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ids":["PMID:39355906"]}`, string(body))
		return http.StatusOK, []any{map[string]any{"citationCount": 7}}
	})

	tl := NewPubMedTool(Endpoint{BaseURL: eutils.URL}, "me@example.com", Endpoint{BaseURL: s2.URL})
	res, err := tl.Execute(context.Background(), map[string]any{"query": "LRP1", "limit": 1})
	require.NoError(t, err)
	require.Empty(t, res.Err)
	assert.Contains(t, res.Content, "Found 42 total results. Showing 1 papers:")
	assert.Contains(t, res.Content, "[pubmed_1] LRP1 Repression by SNAIL Results in ECM Remodeling.")
	assert.Contains(t, res.Content, "Authors: Doe, Jane")
	assert.Contains(t, res.Content, "Year: 2024\nVenue: Circulation\nCitations: 7")
	assert.Contains(t, res.Content, "URL: https://pubmed.ncbi.nlm.nih.gov/39355906/")
	assert.Contains(t, res.Content, "Abstract: BACKGROUND\nVascular & genetic risk.")
}

func TestPubMedTool_NoHits(t *testing.T) {
	eutils := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<eSearchResult><Count>0</Count><IdList></IdList></eSearchResult>`))
	}))
	defer eutils.Close()
	tl := NewPubMedTool(Endpoint{BaseURL: eutils.URL}, "", Endpoint{})
	res, err := tl.Execute(context.Background(), map[string]any{"query": "zzz"})
	require.NoError(t, err)
	assert.Equal(t, "No papers found. Total results: 0", res.Content)
}

func TestCodeExecTool(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/run_code", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "python", req["language"])
		return http.StatusOK, `{"stdout":"2\n","stderr":""}`
	})
	tl := NewCodeExecTool(Endpoint{BaseURL: srv.URL})
	res, err := tl.Execute(context.Background(), map[string]any{"code": "print(1+1)"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stdout":"2\n","stderr":""}`, res.Content)
}

func TestExtractPDFText_Invalid(t *testing.T) {
	text, err := ExtractPDFText([]byte("not a pdf"))
	assert.Error(t, err)
	assert.Empty(t, text)

	text, err = ExtractPDFText(nil)
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestPDFTool_NotAPDF(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) (int, any) { return http.StatusOK, "plain" })
	tl := NewPDFTool(Endpoint{}, 0, 0)
	res, err := tl.Execute(context.Background(), map[string]any{"url": srv.URL + "/paper.pdf"})
	require.NoError(t, err)
	assert.True(t, res.Failed())
}

func TestRegisterBuiltin(t *testing.T) {
	off := false
	cfg := config.ToolsConfig{CodeExec: config.ToolEndpointConfig{Enabled: &off}}
	reg := registry.New()
	RegisterBuiltin(reg, cfg, true)

	names := reg.Names()
	assert.Contains(t, names, SerperToolName)
	assert.Contains(t, names, Crawl4AIToolName)
	assert.Contains(t, names, PubMedToolName)
	assert.Contains(t, names, FinalAnswerToolName)
	assert.NotContains(t, names, CodeExecToolName)
	assert.Equal(t, tool.LinkSearch, reg.LinkKind(SerperToolName))
	assert.Equal(t, tool.LinkBrowse, reg.LinkKind(JinaToolName))
	assert.Equal(t, tool.LinkNone, reg.LinkKind(SportsDBSearchToolName))
}
