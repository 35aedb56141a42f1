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
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	Source     SourceConfig     `mapstructure:"source"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Query      QueryConfig      `mapstructure:"query"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Redaction  RedactionConfig  `mapstructure:"redaction"`
}

// RedactionConfig 入库前脱敏配置
type RedactionConfig struct {
	Enable     bool                  `mapstructure:"enable"`
	Builtin    bool                  `mapstructure:"builtin"`     // 启用内置规则（凭据、邮箱等）
	EncryptKey string                `mapstructure:"encrypt_key"` // encrypt 模式使用，16/24/32 字节，可为 secret://key
	Rules      []RedactionRuleConfig `mapstructure:"rules"`
}

// RedactionRuleConfig 单条脱敏规则
type RedactionRuleConfig struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	Mode    string `mapstructure:"mode"` // redact | hash | encrypt | remove
	Salt    string `mapstructure:"salt"`
}

// RateLimitsConfig 限流配置（LLM Provider 维度）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// AgentConfig 工具调用循环配置
type AgentConfig struct {
	MaxTurns      int         `mapstructure:"max_turns"`      // 最大轮数，<=0 使用默认 8
	TurnTimeout   string      `mapstructure:"turn_timeout"`   // 单次模型调用超时，如 "60s"
	RunTimeout    string      `mapstructure:"run_timeout"`    // 整段对话超时，如 "5m"
	ToolTimeout   string      `mapstructure:"tool_timeout"`   // 单个工具执行超时，默认 60s
	ParallelTools bool        `mapstructure:"parallel_tools"` // 同一轮内多个工具调用并发执行（结果顺序不变）
	SystemPrompt  string      `mapstructure:"system_prompt"`
	Retry         RetryConfig `mapstructure:"retry"`
}

// RetryConfig 模型调用的指数退避重试
type RetryConfig struct {
	MaxRetries      int    `mapstructure:"max_retries"`
	InitialInterval string `mapstructure:"initial_interval"`
	MaxInterval     string `mapstructure:"max_interval"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	RateLimit     bool   `mapstructure:"rate_limit"`
	RateLimitRPS  int    `mapstructure:"rate_limit_rps"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
	LoginToken    string `mapstructure:"login_token"`     // POST /login 校验的共享口令，可为 secret://key
}

// WorkerConfig Worker 服务配置
type WorkerConfig struct {
	PollInterval string `mapstructure:"poll_interval"` // 定时拉取日志间隔，如 "1m"
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
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
	Dimension     int     `mapstructure:"dimension"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置，格式 "provider.model_key"
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// SourceConfig 日志来源配置
type SourceConfig struct {
	Type            string `mapstructure:"type"` // cloudwatch | file
	Region          string `mapstructure:"region"`
	LogGroup        string `mapstructure:"log_group"`
	LookbackMinutes int    `mapstructure:"lookback_minutes"` // 无书签时向前回溯的分钟数
	PageLimit       int32  `mapstructure:"page_limit"`
	PageDelay       string `mapstructure:"page_delay"` // 分页之间的等待，防止触发限流
	FilePath        string `mapstructure:"file_path"`  // type=file 时的 JSONL 事件文件
}

// StorageConfig 存储配置
type StorageConfig struct {
	LogFile    LogFileConfig    `mapstructure:"logfile"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

// LogFileConfig 本地日志文本文件
type LogFileConfig struct {
	Dir  string `mapstructure:"dir"`
	File string `mapstructure:"file"`
}

// CheckpointConfig 拉取书签（最后一条事件时间戳）存储
type CheckpointConfig struct {
	Type string `mapstructure:"type"` // file | postgres
	File string `mapstructure:"file"` // type=file 时相对 logfile.dir 的文件名
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
}

// VectorConfig 向量存储配置（memory 为内置内存；redis 使用 eino-ext 对应组件）
type VectorConfig struct {
	Type       string `mapstructure:"type"`
	Addr       string `mapstructure:"addr"`
	DB         string `mapstructure:"db"`         // memory 忽略；Redis 为 DB 编号，如 "0"
	Collection string `mapstructure:"collection"` // 默认索引名，ingest 与 query 共用
	Password   string `mapstructure:"password"`   // Redis 密码，可选
}

// CacheConfig LLM 结果缓存（none | memory | redis）
type CacheConfig struct {
	Type     string `mapstructure:"type"`
	TTL      string `mapstructure:"ttl"` // 如 "5m"
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueryConfig 检索与分析参数
type QueryConfig struct {
	TopK         int     `mapstructure:"top_k"`
	SummaryLines int     `mapstructure:"summary_lines"`
	ErrorLimit   int     `mapstructure:"error_limit"`
	Threshold    float64 `mapstructure:"threshold"`
}

// SecretsConfig 密钥存储配置
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | vault | memory
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig HashiCorp Vault 配置
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
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.cors.allow_origins", []string{"*"})
	v.SetDefault("api.middleware.rate_limit_rps", 20)
	v.SetDefault("api.grpc.port", 9090)
	v.SetDefault("agent.max_turns", 8)
	v.SetDefault("agent.tool_timeout", "60s")
	v.SetDefault("agent.turn_timeout", "60s")
	v.SetDefault("agent.run_timeout", "5m")
	v.SetDefault("agent.retry.max_retries", 3)
	v.SetDefault("agent.retry.initial_interval", "500ms")
	v.SetDefault("agent.retry.max_interval", "5s")
	v.SetDefault("source.type", "cloudwatch")
	v.SetDefault("source.lookback_minutes", 10)
	v.SetDefault("source.page_limit", 10000)
	v.SetDefault("source.page_delay", "100ms")
	v.SetDefault("storage.logfile.dir", "./aws_logs")
	v.SetDefault("storage.logfile.file", "log.txt")
	v.SetDefault("storage.checkpoint.type", "file")
	v.SetDefault("storage.checkpoint.file", "last_ts.txt")
	v.SetDefault("storage.vector.type", "memory")
	v.SetDefault("storage.vector.collection", "logs")
	v.SetDefault("storage.cache.type", "none")
	v.SetDefault("storage.cache.ttl", "5m")
	v.SetDefault("query.top_k", 10)
	v.SetDefault("query.summary_lines", 200)
	v.SetDefault("query.error_limit", 200)
	v.SetDefault("worker.poll_interval", "1m")
	v.SetDefault("redaction.builtin", true)
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.tracing.service_name", "log-agent")
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

	// 替换环境变量
	replaceEnvVars(&config)

	return &config, nil
}

// expandEnv 将 "${VAR}" 形式替换为环境变量值；变量未设置时为空，等同未配置
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	return os.Getenv(envVar)
}

// replaceEnvVars 替换配置中的环境变量
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.LLM.Providers {
		providerConfig.APIKey = expandEnv(providerConfig.APIKey)
		config.Model.LLM.Providers[provider] = providerConfig
	}
	for provider, providerConfig := range config.Model.Embedding.Providers {
		providerConfig.APIKey = expandEnv(providerConfig.APIKey)
		config.Model.Embedding.Providers[provider] = providerConfig
	}
	config.API.Middleware.JWTKey = expandEnv(config.API.Middleware.JWTKey)
	config.API.Middleware.LoginToken = expandEnv(config.API.Middleware.LoginToken)
	config.Storage.Checkpoint.DSN = expandEnv(config.Storage.Checkpoint.DSN)
	config.Storage.Vector.Password = expandEnv(config.Storage.Vector.Password)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
	config.Redaction.EncryptKey = expandEnv(config.Redaction.EncryptKey)
}

// LoadAPIConfig 加载 API 配置并合并同目录下的 model.yaml
func LoadAPIConfig() (*Config, error) {
	return loadWithModel("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置并合并同目录下的 model.yaml
func LoadWorkerConfig() (*Config, error) {
	return loadWithModel("configs/worker.yaml")
}

// loadWithModel model 路径解析为与主配置同目录，避免 cwd 导致 model.yaml 未加载
func loadWithModel(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(filepath.Dir(path), "model.yaml")
	if abs, errAbs := filepath.Abs(path); errAbs == nil {
		modelPath = filepath.Join(filepath.Dir(abs), "model.yaml")
	}
	modelCfg, err := LoadConfig(modelPath)
	if err == nil {
		cfg.Model = modelCfg.Model
		if len(modelCfg.RateLimits.LLM) > 0 {
			cfg.RateLimits = modelCfg.RateLimits
		}
	} else {
		log.Printf("[config] 未加载 model 配置 %q，将无 LLM 配置: %v", modelPath, err)
	}
	return cfg, nil
}

// ParseDuration 解析时长字符串，空或非法时返回 def
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// LogFilePath 日志文本文件完整路径
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Storage.LogFile.Dir, c.Storage.LogFile.File)
}

// CheckpointPath 文件书签完整路径
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Storage.LogFile.Dir, c.Storage.Checkpoint.File)
}
