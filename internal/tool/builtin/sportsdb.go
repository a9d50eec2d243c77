package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/AthenaAgent/athena-dr/internal/tool"
)

const (
	// SportsDBSearchToolName 体育数据检索工具名
	SportsDBSearchToolName = "the_sports_db_search_tool"
	// SportsDBLookupToolName 体育数据按 ID 查询工具名
	SportsDBLookupToolName = "the_sports_db_lookup_tool"
)

var (
	sportsSearchTypes = []string{"league", "team", "player", "event", "venue"}
	sportsLookupTypes = []string{
		"league", "team", "team_equipment",
		"player", "player_contracts", "player_results", "player_honours", "player_milestones", "player_teams",
		"event", "event_lineup", "event_results", "event_stats", "event_timeline", "event_tv", "event_highlights",
		"venue",
	}
)

// sportsDB TheSportsDB v2 公共客户端
type sportsDB struct {
	client *resty.Client
	apiKey string
}

func newSportsDB(ep Endpoint) sportsDB {
	return sportsDB{client: newRestClient(ep.base("https://www.thesportsdb.com/api/v2/json"), ep.Timeout), apiKey: ep.APIKey}
}

// slug 空白折叠为下划线并小写，再做路径转义
func slug(s string) string {
	return url.PathEscape(strings.ToLower(strings.Join(strings.Fields(s), "_")))
}

func (s sportsDB) get(ctx context.Context, path, field string) (tool.ToolResult, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", s.apiKey).
		SetHeader("Accept", "application/json").
		Get(path)
	if err != nil {
		return tool.ToolResult{}, err
	}
	if resp.IsError() {
		return tool.ToolResult{Err: statusError(resp)}, nil
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return tool.ToolResult{Err: "decode response: " + err.Error()}, nil
	}
	var items []map[string]any
	_ = json.Unmarshal(data[field], &items)
	return tool.ToolResult{Content: formatSports(items)}, nil
}

// formatSports 每条记录一个 [sportsdb_N]，首行取名称字段，其余字段按 JSON 附后
func formatSports(items []map[string]any) string {
	if len(items) == 0 {
		return "No results found."
	}
	parts := make([]string, 0, len(items))
	for i, it := range items {
		name := ""
		for _, k := range []string{"strPlayer", "strTeam", "strLeague", "strEvent", "strVenue", "strEquipment", "strHonour", "strMilestone"} {
			if v, ok := it[k].(string); ok && v != "" {
				name = v
				break
			}
		}
		raw, _ := json.Marshal(it)
		parts = append(parts, fmt.Sprintf("[sportsdb_%d] %s\n%s\n", i+1, orNA(name), raw))
	}
	return strings.Join(parts, "\n")
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// SportsDBSearchTool 按名称检索联赛、球队、球员、赛事或场馆
type SportsDBSearchTool struct{ sportsDB }

// NewSportsDBSearchTool 创建检索工具
func NewSportsDBSearchTool(ep Endpoint) *SportsDBSearchTool {
	return &SportsDBSearchTool{newSportsDB(ep)}
}

func (t *SportsDBSearchTool) Name() string { return SportsDBSearchToolName }

func (t *SportsDBSearchTool) Description() string {
	return "Search for any sports league, team, player, event, or venue based on a query. " +
		"Each result carries a snippet ID (e.g., [sportsdb_1]) for citation."
}

func (t *SportsDBSearchTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":       {Type: "string", Description: "the query to search"},
			"search_type": {Type: "string", Description: "Type of search to perform", Enum: sportsSearchTypes},
		},
		Required: []string{"query", "search_type"},
	}
}

func (t *SportsDBSearchTool) SnippetPrefixes() []string { return []string{"sportsdb_"} }

// Execute 实现 tool.Tool
func (t *SportsDBSearchTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	query, typ := stringArg(input, "query"), stringArg(input, "search_type")
	if query == "" || !oneOf(typ, sportsSearchTypes) {
		return tool.ToolResult{Err: "query and a valid search_type are required"}, nil
	}
	return t.get(ctx, "/search/"+typ+"/"+slug(query), "search")
}

// SportsDBLookupTool 按唯一 ID 查询详情
type SportsDBLookupTool struct{ sportsDB }

// NewSportsDBLookupTool 创建查询工具
func NewSportsDBLookupTool(ep Endpoint) *SportsDBLookupTool {
	return &SportsDBLookupTool{newSportsDB(ep)}
}

func (t *SportsDBLookupTool) Name() string { return SportsDBLookupToolName }

func (t *SportsDBLookupTool) Description() string {
	return "Look up sports data by unique ID: league/event by idLeague, team/team_equipment by idTeam, " +
		"player and player_* by idPlayer, event_* by idEvent, venue by idVenue. " +
		"IDs can be found using the the_sports_db_search_tool tool."
}

func (t *SportsDBLookupTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"lookup_id":   {Type: "string", Description: "The unique ID of the entity to lookup"},
			"lookup_type": {Type: "string", Description: "The type of entity to lookup", Enum: sportsLookupTypes},
		},
		Required: []string{"lookup_id", "lookup_type"},
	}
}

func (t *SportsDBLookupTool) SnippetPrefixes() []string { return []string{"sportsdb_"} }

// Execute 实现 tool.Tool
func (t *SportsDBLookupTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	id, typ := stringArg(input, "lookup_id"), stringArg(input, "lookup_type")
	if id == "" || !oneOf(typ, sportsLookupTypes) {
		return tool.ToolResult{Err: "lookup_id and a valid lookup_type are required"}, nil
	}
	return t.get(ctx, "/lookup/"+typ+"/"+slug(id), "lookup")
}
