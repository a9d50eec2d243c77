// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package app 统一装配：api 与 worker 共用的日志、密钥、模型、工具与存储初始化
package app

import (
	"context"
	"fmt"

	"github.com/AthenaAgent/athena-dr/internal/agent/citation"
	"github.com/AthenaAgent/athena-dr/internal/grader"
	"github.com/AthenaAgent/athena-dr/internal/model"
	"github.com/AthenaAgent/athena-dr/internal/model/llm"
	"github.com/AthenaAgent/athena-dr/internal/storage/cache"
	"github.com/AthenaAgent/athena-dr/internal/storage/result"
	"github.com/AthenaAgent/athena-dr/internal/tool/builtin"
	"github.com/AthenaAgent/athena-dr/internal/tool/registry"
	"github.com/AthenaAgent/athena-dr/pkg/config"
	"github.com/AthenaAgent/athena-dr/pkg/log"
	"github.com/AthenaAgent/athena-dr/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 worker 复用，避免在 cmd 内写业务装配
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Secrets  secrets.Store
	Models   *model.Registry
	LLM      llm.Client
	Prefixes *citation.Registry
	Tools    *registry.Registry
	Cache    cache.Store
	Results  result.Store
	// Checker 未配置评审模型时只按 F1 判定
	Checker *grader.Checker
}

// NewBootstrap 根据配置创建 Bootstrap；密钥引用在此统一解析
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	store, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Static:   cfg.Secrets.Static,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化密钥存储失败: %w", err)
	}
	if err := ResolveSecrets(ctx, store, cfg); err != nil {
		return nil, err
	}

	b := &Bootstrap{Config: cfg, Logger: logger, Secrets: store}

	b.Cache, err = cache.NewCache(ctx, cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}
	b.Results, err = result.NewStore(ctx, cfg.Storage.Result)
	if err != nil {
		_ = b.Cache.Close()
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}

	b.Prefixes = citation.NewRegistry()
	b.Tools = registry.New(
		registry.WithPrefixRegistry(b.Prefixes),
		registry.WithRateLimiter(registry.NewToolRateLimiterFromConfig(cfg.RateLimits)),
		registry.WithCache(b.Cache, config.ParseDuration(cfg.Tools.CacheTTL, 0)),
		registry.WithTimeout(config.ParseDuration(cfg.Agent.ToolTimeout, 0)),
		registry.WithLogger(logger.With("component", "tools")),
	)
	builtin.RegisterBuiltin(b.Tools, cfg.Tools, cfg.Agent.AnswerMode != "tag")

	b.Models = model.NewRegistry(cfg)
	b.LLM, err = b.Models.Default()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化模型失败: %w", err)
	}
	if bc := cfg.Tools.BrowseAgent; bc.Enabled {
		reader := b.LLM
		if bc.Model != "" {
			if reader, err = b.Models.LLM(bc.Model); err != nil {
				b.Close()
				return nil, fmt.Errorf("初始化网页摘要模型失败: %w", err)
			}
		}
		builtin.EnableBrowseAgent(b.Tools, reader, bc.MaxChars, logger.With("component", "browse_agent"))
	}

	var g grader.Grader
	if cfg.Grader.Enabled {
		lg, err := grader.NewLLMGrader(cfg.Grader)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("初始化评审模型失败: %w", err)
		}
		g = lg
	}
	b.Checker = grader.NewChecker(g, cfg.Grader.F1Threshold, logger.With("component", "grader"))

	logger.Info("bootstrap ready",
		"tools", b.Tools.Names(),
		"cache", cfg.Storage.Cache.Type,
		"result_store", cfg.Storage.Result.Type,
		"grader", cfg.Grader.Enabled,
	)
	return b, nil
}

// Close 释放缓存与结果存储
func (b *Bootstrap) Close() {
	if b.Cache != nil {
		_ = b.Cache.Close()
	}
	if b.Results != nil {
		_ = b.Results.Close()
	}
}

// ResolveSecrets 把配置中 "secret:KEY" 形式的 API Key 替换为密钥存储中的值
func ResolveSecrets(ctx context.Context, store secrets.Store, cfg *config.Config) error {
	fields := map[string]*string{
		"tools.serper.api_key":           &cfg.Tools.Serper.APIKey,
		"tools.jina.api_key":             &cfg.Tools.Jina.APIKey,
		"tools.crawl4ai.api_key":         &cfg.Tools.Crawl4AI.APIKey,
		"tools.semantic_scholar.api_key": &cfg.Tools.SemanticScholar.APIKey,
		"tools.pubmed.api_key":           &cfg.Tools.PubMed.APIKey,
		"tools.sportsdb.api_key":         &cfg.Tools.SportsDB.APIKey,
		"tools.code_exec.api_key":        &cfg.Tools.CodeExec.APIKey,
		"tools.pdf.api_key":              &cfg.Tools.PDF.APIKey,
		"grader.api_key":                 &cfg.Grader.APIKey,
		"api.middleware.jwt_key":         &cfg.API.Middleware.JWTKey,
		"storage.result.dsn":             &cfg.Storage.Result.DSN,
		"storage.cache.password":         &cfg.Storage.Cache.Password,
	}
	for name, pc := range cfg.Model.LLM.Providers {
		key, err := secrets.Resolve(ctx, store, pc.APIKey)
		if err != nil {
			return fmt.Errorf("resolve model.llm.providers.%s.api_key: %w", name, err)
		}
		pc.APIKey = key
		cfg.Model.LLM.Providers[name] = pc
	}
	return secrets.ResolveFields(ctx, store, fields)
}
