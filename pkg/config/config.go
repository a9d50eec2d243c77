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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体（api / worker / cli 共用）
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Grader     GraderConfig     `mapstructure:"grader"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool              `mapstructure:"auth"`
	JWTKey        string            `mapstructure:"jwt_key"`
	JWTTimeout    string            `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string            `mapstructure:"jwt_max_refresh"` // 如 "1h"
	Users         map[string]string `mapstructure:"users"`           // username -> password，供 /api/login 校验
}

// GrpcConfig gRPC 健康检查服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// AgentConfig 研究 Agent 循环配置
type AgentConfig struct {
	Name            string  `mapstructure:"name"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"` // 累计输出 token 上限（主预算）
	MaxSteps        int     `mapstructure:"max_steps"`         // 步数兜底上限
	AnswerMode      string  `mapstructure:"answer_mode"`       // tag | tool | both
	AnswerType      string  `mapstructure:"answer_type"`       // short | long | exact
	ToolTimeout     string  `mapstructure:"tool_timeout"`      // 单次工具调用超时，如 "60s"
	ExtractBoxed    bool    `mapstructure:"extract_boxed"`     // 短答案场景下提取 \boxed{...}
	AnswerFallback  bool    `mapstructure:"answer_fallback"`   // 预算耗尽且无答案时追加一次作答调用
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"` // 单次模型调用 max_tokens
	NativeTools     bool    `mapstructure:"native_tools"` // 通过 function calling 下发工具，而非仅靠提示词
	Reasoning       bool    `mapstructure:"reasoning"`    // 请求推理轨迹并以 <thinking> 写回对话
	// EventAliases [Event: ...] 格式中 search_type/tool 到真实工具名的映射
	EventAliases map[string]string `mapstructure:"event_aliases"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置，格式 provider.model_key
type DefaultsConfig struct {
	LLM string `mapstructure:"llm"`
}

// ToolEndpointConfig 外部工具 API 的公共配置
type ToolEndpointConfig struct {
	Enabled *bool  `mapstructure:"enabled"` // 未配置时默认启用
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

// IsEnabled 未显式配置 enabled 时视为启用
func (c ToolEndpointConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// PubMedConfig PubMed E-utilities 配置
type PubMedConfig struct {
	ToolEndpointConfig `mapstructure:",squash"`
	Email              string `mapstructure:"email"`
}

// PDFConfig PDF 读取工具配置
type PDFConfig struct {
	ToolEndpointConfig `mapstructure:",squash"`
	MaxBytes           int64 `mapstructure:"max_bytes"`
	MaxChars           int   `mapstructure:"max_chars"`
}

// ToolsConfig 各研究工具配置
type ToolsConfig struct {
	Serper          ToolEndpointConfig `mapstructure:"serper"`
	Jina            ToolEndpointConfig `mapstructure:"jina"`
	Crawl4AI        ToolEndpointConfig `mapstructure:"crawl4ai"`
	SemanticScholar ToolEndpointConfig `mapstructure:"semantic_scholar"`
	PubMed          PubMedConfig       `mapstructure:"pubmed"`
	SportsDB        ToolEndpointConfig `mapstructure:"sportsdb"`
	CodeExec        ToolEndpointConfig `mapstructure:"code_exec"`
	PDF             PDFConfig          `mapstructure:"pdf"`
	BrowseAgent     BrowseAgentConfig  `mapstructure:"browse_agent"`
	CacheTTL        string             `mapstructure:"cache_ttl"` // 工具结果缓存时长，空则不缓存
}

// BrowseAgentConfig 抓取结果经 LLM 按问题清洗后再写回观察
type BrowseAgentConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Model    string `mapstructure:"model"`     // provider.model_key，空则使用 model.defaults.llm
	MaxChars int    `mapstructure:"max_chars"` // 送入模型的正文上限
}

// BatchConfig 批量生成配置
type BatchConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Input       string `mapstructure:"input"`  // JSONL 数据集
	Output      string `mapstructure:"output"` // JSONL 结果，追加写
	MaxExamples int    `mapstructure:"max_examples"`
	Retry       bool   `mapstructure:"retry"` // 有标准答案时启用拒绝采样重试
}

// GraderConfig 拒绝采样评审配置
type GraderConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Provider    string  `mapstructure:"provider"` // openai | azure
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	APIVersion  string  `mapstructure:"api_version"` // azure 专用
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	F1Threshold float64 `mapstructure:"f1_threshold"`
	MaxAttempts int     `mapstructure:"max_attempts"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Result ResultStoreConfig `mapstructure:"result"`
	Cache  CacheConfig       `mapstructure:"cache"`
}

// ResultStoreConfig 结果存储配置
type ResultStoreConfig struct {
	Type string `mapstructure:"type"` // memory | jsonl | postgres
	DSN  string `mapstructure:"dsn"`  // postgres 连接串
	Path string `mapstructure:"path"` // jsonl 文件路径
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// SecretsConfig API Key 等密钥来源
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Static   map[string]string `mapstructure:"static"`   // provider=memory 时的密钥表，本地调试用
	Vault    VaultConfig       `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool    `mapstructure:"enable"`
	ServiceName    string  `mapstructure:"service_name"`
	ExportEndpoint string  `mapstructure:"export_endpoint"`
	Insecure       bool    `mapstructure:"insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio"` // worker 根 span 采样比例，0 表示全采样
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// RateLimitsConfig 限流配置（Tool + LLM）
type RateLimitsConfig struct {
	Tools map[string]ToolRateLimitConfig `mapstructure:"tools"`
	LLM   map[string]LLMRateLimitConfig  `mapstructure:"llm"`
}

// ToolRateLimitConfig 单个 Tool 的限流配置
type ToolRateLimitConfig struct {
	QPS           float64 `mapstructure:"qps"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
	Burst         int     `mapstructure:"burst"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// setDefaults 与原研究脚本的默认值保持一致
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.timeout", "10m")
	v.SetDefault("tools.browse_agent.enabled", false)
	v.SetDefault("tools.browse_agent.max_chars", 32000)
	v.SetDefault("agent.name", "athena")
	v.SetDefault("agent.max_output_tokens", 10000)
	v.SetDefault("agent.max_steps", 1000)
	v.SetDefault("agent.answer_mode", "both")
	v.SetDefault("agent.answer_type", "short")
	v.SetDefault("agent.tool_timeout", "60s")
	v.SetDefault("agent.max_tokens", 4096)
	v.SetDefault("agent.temperature", 0.6)
	v.SetDefault("agent.event_aliases", map[string]string{
		"scholarly_search": "semantic_scholar_paper_search",
		"web_search":       "serper_search_tool",
	})
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("grader.provider", "openai")
	v.SetDefault("grader.max_tokens", 32000)
	v.SetDefault("grader.temperature", 0.3)
	v.SetDefault("grader.f1_threshold", 0.9)
	v.SetDefault("grader.max_attempts", 5)
	v.SetDefault("storage.result.type", "memory")
	v.SetDefault("storage.cache.type", "memory")
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default 返回仅含默认值的配置（无配置文件时使用）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadOrDefault path 为空或文件不存在时退回默认配置
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadConfig(path)
}

// expandEnv 解析 "${VAR}" / "$VAR" 形式的值；环境变量为空时保留原值
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}"), "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return s
}

// replaceEnvVars 替换配置中的环境变量（API Key、DSN、JWT Key）
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.LLM.Providers {
		providerConfig.APIKey = expandEnv(providerConfig.APIKey)
		config.Model.LLM.Providers[provider] = providerConfig
	}
	for _, tc := range []*ToolEndpointConfig{
		&config.Tools.Serper, &config.Tools.Jina, &config.Tools.Crawl4AI,
		&config.Tools.SemanticScholar, &config.Tools.PubMed.ToolEndpointConfig,
		&config.Tools.SportsDB, &config.Tools.CodeExec, &config.Tools.PDF.ToolEndpointConfig,
	} {
		tc.APIKey = expandEnv(tc.APIKey)
	}
	config.Grader.APIKey = expandEnv(config.Grader.APIKey)
	config.Storage.Result.DSN = expandEnv(config.Storage.Result.DSN)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
	config.API.Middleware.JWTKey = expandEnv(config.API.Middleware.JWTKey)
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
