package builtin

import (
	"time"

	"github.com/AthenaAgent/athena-dr/internal/tool"
	"github.com/AthenaAgent/athena-dr/internal/tool/registry"
	"github.com/AthenaAgent/athena-dr/pkg/config"
)

func endpoint(c config.ToolEndpointConfig, def time.Duration) Endpoint {
	return Endpoint{APIKey: c.APIKey, BaseURL: c.BaseURL, Timeout: config.ParseDuration(c.Timeout, def)}
}

// RegisterBuiltin 按配置注册研究工具；未显式关闭的工具都会注册
func RegisterBuiltin(reg *registry.Registry, cfg config.ToolsConfig, withFinalAnswer bool) {
	if reg == nil {
		return
	}
	s2 := endpoint(cfg.SemanticScholar, 10*time.Second)
	if cfg.Serper.IsEnabled() {
		reg.Register(NewSerperTool(endpoint(cfg.Serper, 30*time.Second)))
	}
	if cfg.Jina.IsEnabled() {
		reg.Register(NewJinaTool(endpoint(cfg.Jina, 60*time.Second)))
	}
	if cfg.Crawl4AI.IsEnabled() {
		reg.Register(NewCrawl4AITool(endpoint(cfg.Crawl4AI, 90*time.Second)))
	}
	if cfg.SemanticScholar.IsEnabled() {
		reg.Register(NewS2PaperSearchTool(s2))
		reg.Register(NewS2SnippetSearchTool(s2))
	}
	if cfg.PubMed.IsEnabled() {
		reg.Register(NewPubMedTool(endpoint(cfg.PubMed.ToolEndpointConfig, 30*time.Second), cfg.PubMed.Email, s2))
	}
	if cfg.SportsDB.IsEnabled() {
		ep := endpoint(cfg.SportsDB, 30*time.Second)
		reg.Register(NewSportsDBSearchTool(ep))
		reg.Register(NewSportsDBLookupTool(ep))
	}
	if cfg.CodeExec.IsEnabled() {
		reg.Register(NewCodeExecTool(endpoint(cfg.CodeExec, 60*time.Second)))
	}
	if cfg.PDF.IsEnabled() {
		reg.Register(NewPDFTool(endpoint(cfg.PDF.ToolEndpointConfig, 60*time.Second), cfg.PDF.MaxBytes, cfg.PDF.MaxChars))
	}
	if withFinalAnswer {
		reg.Register(FinalAnswerTool{})
	}
}

// RegisterBuiltinWithTools 仅注册给定工具（用于测试或最小装配）
func RegisterBuiltinWithTools(reg *registry.Registry, tools ...tool.Tool) {
	if reg == nil {
		return
	}
	for _, t := range tools {
		reg.Register(t)
	}
}
