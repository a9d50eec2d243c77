package builtin

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/pkg/utils"
)

// PubMedToolName 生物医学文献检索工具名
const PubMedToolName = "pubmed_search"

// PubMedTool E-utilities esearch + efetch，再用 Semantic Scholar paper/batch 补充引用数
type PubMedTool struct {
	client *resty.Client
	s2     *resty.Client
	s2Key  string
	apiKey string
	email  string
}

// NewPubMedTool 创建 PubMed 工具；s2 为引用数补充所用的 Semantic Scholar 端点
func NewPubMedTool(ep Endpoint, email string, s2 Endpoint) *PubMedTool {
	return &PubMedTool{
		client: newRestClient(ep.base("https://eutils.ncbi.nlm.nih.gov/entrez/eutils"), ep.Timeout),
		s2:     newRestClient(s2.base(s2GraphAPIURL), s2.Timeout),
		s2Key:  s2.APIKey,
		apiKey: ep.APIKey,
		email:  email,
	}
}

func (t *PubMedTool) Name() string { return PubMedToolName }

func (t *PubMedTool) Description() string {
	return "Search for medical and scientific papers using PubMed API: research papers, clinical studies " +
		"and medical publications, enriched with citation counts from Semantic Scholar. Returns papers " +
		"with snippet IDs (e.g., [pubmed_1]) for citation."
}

func (t *PubMedTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":  {Type: "string", Description: "Search query string for finding medical/scientific papers in PubMed"},
			"limit":  {Type: "integer", Description: "Maximum number of results to return", Default: 10},
			"offset": {Type: "integer", Description: "Starting position for pagination", Default: 0},
		},
		Required: []string{"query"},
	}
}

func (t *PubMedTool) SnippetPrefixes() []string { return []string{"pubmed_"} }

func (t *PubMedTool) LinkKind() tool.LinkKind { return tool.LinkSearch }

type eSearchResult struct {
	Count    int      `xml:"Count"`
	RetMax   int      `xml:"RetMax"`
	RetStart int      `xml:"RetStart"`
	IDs      []string `xml:"IdList>Id"`
}

// richText 保留含 <i>/<sup> 等内联标签的元素全文
type richText struct {
	Label string `xml:"Label,attr"`
	Inner string `xml:",innerxml"`
}

var inlineTagRe = regexp.MustCompile(`<[^>]+>`)

func (r richText) Text() string {
	s := inlineTagRe.ReplaceAllString(r.Inner, " ")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

type pubmedArticleSet struct {
	Articles []struct {
		PMID    string `xml:"MedlineCitation>PMID"`
		Article struct {
			Title    richText   `xml:"ArticleTitle"`
			Abstract []richText `xml:"Abstract>AbstractText"`
			Authors  []struct {
				LastName string `xml:"LastName"`
				ForeName string `xml:"ForeName"`
			} `xml:"AuthorList>Author"`
			Journal struct {
				Title string `xml:"Title"`
				Year  string `xml:"JournalIssue>PubDate>Year"`
			} `xml:"Journal"`
		} `xml:"MedlineCitation>Article"`
	} `xml:"PubmedArticle"`
}

type pubmedPaper struct {
	PMID          string
	Title         string
	Abstract      string
	Authors       []string
	Year          string
	Venue         string
	CitationCount *int
}

// Execute 实现 tool.Tool
func (t *PubMedTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	query := stringArg(input, "query")
	if query == "" {
		return tool.ToolResult{Err: "query is required"}, nil
	}
	stat, err := t.search(ctx, query, intArg(input, "offset", 0), intArg(input, "limit", 10))
	if err != nil {
		return tool.ToolResult{Err: err.Error()}, nil
	}
	if len(stat.IDs) == 0 {
		return tool.ToolResult{Content: fmt.Sprintf("No papers found. Total results: %d", stat.Count)}, nil
	}
	papers, err := t.fetch(ctx, stat.IDs)
	if err != nil {
		return tool.ToolResult{Err: err.Error()}, nil
	}
	if len(papers) == 0 {
		return tool.ToolResult{Content: "No papers found matching the query."}, nil
	}
	t.enrich(ctx, papers)
	return tool.ToolResult{Content: formatPubMed(stat.Count, papers)}, nil
}

func (t *PubMedTool) params(extra map[string]string) map[string]string {
	p := map[string]string{"db": "pubmed"}
	if t.email != "" {
		p["email"] = t.email
	}
	if t.apiKey != "" {
		p["api_key"] = t.apiKey
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func (t *PubMedTool) search(ctx context.Context, query string, offset, limit int) (*eSearchResult, error) {
	resp, err := t.client.R().SetContext(ctx).SetQueryParams(t.params(map[string]string{
		"term":       query,
		"retmax":     strconv.Itoa(limit),
		"retstart":   strconv.Itoa(offset),
		"usehistory": "n",
		"sort":       "relevance",
	})).Get("/esearch.fcgi")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s", statusError(resp))
	}
	var out eSearchResult
	if err := xml.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode esearch response: %w", err)
	}
	return &out, nil
}

func (t *PubMedTool) fetch(ctx context.Context, ids []string) ([]*pubmedPaper, error) {
	resp, err := t.client.R().SetContext(ctx).SetQueryParams(t.params(map[string]string{
		"id":      strings.Join(ids, ","),
		"retmode": "xml",
	})).Get("/efetch.fcgi")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s", statusError(resp))
	}
	var set pubmedArticleSet
	if err := xml.Unmarshal(resp.Body(), &set); err != nil {
		return nil, fmt.Errorf("decode efetch response: %w", err)
	}
	papers := make([]*pubmedPaper, 0, len(set.Articles))
	for _, a := range set.Articles {
		p := &pubmedPaper{
			PMID:  strings.TrimSpace(a.PMID),
			Title: a.Article.Title.Text(),
			Year:  a.Article.Journal.Year,
			Venue: a.Article.Journal.Title,
		}
		var abstract []string
		for _, at := range a.Article.Abstract {
			if at.Label != "" {
				abstract = append(abstract, at.Label)
			}
			abstract = append(abstract, at.Text())
		}
		p.Abstract = strings.Join(abstract, "\n")
		for _, au := range a.Article.Authors {
			if au.LastName != "" && au.ForeName != "" {
				p.Authors = append(p.Authors, au.LastName+", "+au.ForeName)
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// enrich 批量查询引用数；失败时保持 N/A，不影响检索结果
func (t *PubMedTool) enrich(ctx context.Context, papers []*pubmedPaper) {
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = "PMID:" + p.PMID
	}
	r := t.s2.R().
		SetContext(ctx).
		SetQueryParam("fields", "citationCount").
		SetBody(map[string]any{"ids": ids})
	if t.s2Key != "" {
		r.SetHeader("x-api-key", t.s2Key)
	}
	resp, err := r.Post("/paper/batch")
	if err != nil || resp.IsError() {
		return
	}
	var results []*struct {
		CitationCount *int `json:"citationCount"`
	}
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return
	}
	for i := range papers {
		if i < len(results) && results[i] != nil {
			papers[i].CitationCount = results[i].CitationCount
		}
	}
}

func formatPubMed(total int, papers []*pubmedPaper) string {
	parts := make([]string, 0, len(papers))
	for i, p := range papers {
		lines := []string{
			fmt.Sprintf("[pubmed_%d] %s", i+1, orNA(p.Title)),
			"Authors: " + authorList(p.Authors),
			"Year: " + orNA(p.Year),
			"Venue: " + orNA(p.Venue),
			"Citations: " + citationText(p.CitationCount),
			"URL: https://pubmed.ncbi.nlm.nih.gov/" + p.PMID + "/",
			"PMID: " + orNA(p.PMID),
		}
		if p.Abstract != "" {
			lines = append(lines, "Abstract: "+utils.Truncate(p.Abstract, abstractMaxChars))
		}
		parts = append(parts, strings.Join(lines, "\n")+"\n")
	}
	header := fmt.Sprintf("Found %d total results. Showing %d papers:\n\n", total, len(parts))
	return header + strings.Join(parts, "\n")
}
