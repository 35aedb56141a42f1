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

// Package app 装配 API 与 Worker 共用的组件：日志、密钥、存储、日志来源、索引、LLM、工具注册表与 Agent。
package app

import (
	"context"
	"fmt"
	"time"

	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/spf13/afero"

	"log-agent/internal/agent"
	"log-agent/internal/einoext"
	"log-agent/internal/logsource"
	"log-agent/internal/model/chat"
	"log-agent/internal/model/embedding"
	"log-agent/internal/model/llm"
	"log-agent/internal/pipeline/ingest"
	"log-agent/internal/pipeline/query"
	"log-agent/internal/storage/cache"
	"log-agent/internal/storage/checkpoint"
	"log-agent/internal/storage/logfile"
	"log-agent/internal/storage/vector"
	"log-agent/internal/tool/builtin"
	"log-agent/internal/tool/registry"
	"log-agent/pkg/config"
	"log-agent/pkg/log"
	"log-agent/pkg/redaction"
	"log-agent/pkg/secrets"
)

// Bootstrap 进程内共享的组件
type Bootstrap struct {
	Config      *config.Config
	Logger      *log.Logger
	Secrets     secrets.Store
	VectorStore vector.Store
	LogFile     *logfile.File
	Ingest      *ingest.Service
	Query       *query.Service
	Registry    *registry.Registry
	// Agent 未配置可用的工具调用模型时为 nil
	Agent *agent.Agent

	closers []func()
}

// Options 装配选项
type Options struct {
	// Fs 日志文件与文件书签使用的文件系统，nil 为 OsFs
	Fs afero.Fs
	// Source 非 nil 时替代配置中的日志来源
	Source logsource.Source
}

// NewBootstrap 按配置装配全部组件
func NewBootstrap(ctx context.Context, cfg *config.Config, opts Options) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	b := &Bootstrap{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	b.Secrets, err = secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化密钥存储失败: %w", err)
	}
	if err := b.resolveSecrets(ctx); err != nil {
		return nil, err
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	b.LogFile = logfile.New(fs, cfg.LogFilePath())

	bookmarks, closeBookmarks, err := checkpoint.New(ctx, cfg, fs)
	if err != nil {
		return nil, fmt.Errorf("初始化书签存储失败: %w", err)
	}
	b.closers = append(b.closers, closeBookmarks)

	src := opts.Source
	if src == nil {
		src, err = logsource.New(ctx, cfg.Source, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化日志来源失败: %w", err)
		}
	}

	embedder, dim, err := NewEmbedderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	b.VectorStore, err = vector.NewStore(cfg.Storage.Vector)
	if err != nil {
		return nil, fmt.Errorf("初始化向量存储失败: %w", err)
	}
	b.closers = append(b.closers, func() { _ = b.VectorStore.Close() })

	deps := einoext.Deps{
		VectorStore: b.VectorStore,
		Embedder:    embedder,
		Dimension:   dim,
		TopK:        cfg.Query.TopK,
		Threshold:   cfg.Query.Threshold,
	}
	indexer, err := einoext.NewIndexer(ctx, cfg.Storage.Vector, deps)
	if err != nil {
		return nil, fmt.Errorf("初始化索引写入失败: %w", err)
	}
	retriever, err := einoext.NewRetriever(ctx, cfg.Storage.Vector, deps)
	if err != nil {
		return nil, fmt.Errorf("初始化检索失败: %w", err)
	}

	llmClient, err := NewLLMClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if llmClient == nil {
		logger.Warn("未配置 LLM，查询、摘要与健康报告将返回上游不可用")
	}
	resultCache, err := cache.New(ctx, cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化结果缓存失败: %w", err)
	}
	if resultCache != nil {
		b.closers = append(b.closers, func() { _ = resultCache.Close() })
		llmClient = llm.NewCachedClient(llmClient, resultCache, config.ParseDuration(cfg.Storage.Cache.TTL, 5*time.Minute))
	}

	ingestOpts := []ingest.Option{
		ingest.WithLookback(time.Duration(cfg.Source.LookbackMinutes) * time.Minute),
		ingest.WithLogger(logger),
	}
	redactor, err := redaction.NewEngine(redaction.LoadPolicyFromConfig(cfg.Redaction), []byte(cfg.Redaction.EncryptKey))
	if err != nil {
		return nil, fmt.Errorf("初始化脱敏规则失败: %w", err)
	}
	if redactor.Enabled() {
		ingestOpts = append(ingestOpts, ingest.WithRedactor(redactor))
	}
	b.Ingest = ingest.NewService(src, bookmarks, b.LogFile, indexer, ingestOpts...)
	b.Query = query.NewService(retriever, b.LogFile, llmClient, query.Config{
		TopK:         cfg.Query.TopK,
		SummaryLines: cfg.Query.SummaryLines,
		ErrorLimit:   cfg.Query.ErrorLimit,
	}, logger)

	b.Registry = registry.New()
	if err := builtin.Register(b.Registry, b.Ingest, b.Query); err != nil {
		return nil, fmt.Errorf("注册内置工具失败: %w", err)
	}

	b.Agent, err = b.newAgent(ctx)
	if err != nil {
		return nil, err
	}
	ok = true
	return b, nil
}

// Close 释放连接池等资源，按创建逆序执行
func (b *Bootstrap) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// resolveSecrets 将配置中的 secret:// 引用替换为真实值
func (b *Bootstrap) resolveSecrets(ctx context.Context) error {
	cfg := b.Config
	resolve := func(field string, v *string) error {
		out, err := secrets.Resolve(ctx, b.Secrets, *v)
		if err != nil {
			return fmt.Errorf("解析 %s 失败: %w", field, err)
		}
		*v = out
		return nil
	}
	for name, pc := range cfg.Model.LLM.Providers {
		if err := resolve("model.llm.providers."+name+".api_key", &pc.APIKey); err != nil {
			return err
		}
		cfg.Model.LLM.Providers[name] = pc
	}
	for name, pc := range cfg.Model.Embedding.Providers {
		if err := resolve("model.embedding.providers."+name+".api_key", &pc.APIKey); err != nil {
			return err
		}
		cfg.Model.Embedding.Providers[name] = pc
	}
	if err := resolve("api.middleware.jwt_key", &cfg.API.Middleware.JWTKey); err != nil {
		return err
	}
	if err := resolve("api.middleware.login_token", &cfg.API.Middleware.LoginToken); err != nil {
		return err
	}
	if err := resolve("redaction.encrypt_key", &cfg.Redaction.EncryptKey); err != nil {
		return err
	}
	if err := resolve("storage.cache.password", &cfg.Storage.Cache.Password); err != nil {
		return err
	}
	if err := resolve("storage.checkpoint.dsn", &cfg.Storage.Checkpoint.DSN); err != nil {
		return err
	}
	return resolve("storage.vector.password", &cfg.Storage.Vector.Password)
}

// newAgent 仅 OpenAI 兼容的提供商支持工具调用；其余情况返回 nil
func (b *Bootstrap) newAgent(ctx context.Context) (*agent.Agent, error) {
	cfg := b.Config
	if cfg.Model.Defaults.LLM == "" {
		return nil, nil
	}
	provider, pc, mi, err := lookupModel(cfg.Model.LLM.Providers, cfg.Model.Defaults.LLM, "LLM")
	if err != nil {
		return nil, err
	}
	if provider == "claude" || provider == "anthropic" || pc.APIKey == "" {
		b.Logger.Warn("默认 LLM 不支持工具调用，/agent 不可用", "provider", provider)
		return nil, nil
	}
	cm, err := chat.NewOpenAIChatModel(ctx, mi.Name, pc.APIKey, pc.BaseURL, float32(mi.Temperature))
	if err != nil {
		return nil, fmt.Errorf("初始化对话模型失败: %w", err)
	}
	backend, err := chat.NewEinoBackend(cm, b.Registry.ToolInfos(),
		chat.WithSystemPrompt(cfg.Agent.SystemPrompt),
		chat.WithRetry(chat.RetryPolicyFrom(cfg.Agent.Retry)),
		chat.WithLogger(b.Logger),
		chat.WithProvider(provider),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化对话后端失败: %w", err)
	}
	return agent.New(backend, b.Registry,
		agent.WithConfig(agent.ConfigFrom(cfg.Agent)),
		agent.WithLogger(b.Logger),
	), nil
}

// NewLLMClientFromConfig 按 model.defaults.llm 创建带限流的文本客户端；未配置或无 api_key 时返回 nil
func NewLLMClientFromConfig(cfg *config.Config) (llm.Client, error) {
	if cfg == nil || cfg.Model.Defaults.LLM == "" {
		return nil, nil
	}
	provider, pc, mi, err := lookupModel(cfg.Model.LLM.Providers, cfg.Model.Defaults.LLM, "LLM")
	if err != nil {
		return nil, err
	}
	if pc.APIKey == "" {
		return nil, nil
	}
	c, err := llm.NewClient(provider, mi.Name, pc.APIKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}
	limiter := llm.NewLLMRateLimiter(llm.LimitsFromConfig(cfg.RateLimits.LLM), nil)
	return llm.NewRateLimitedClient(c, limiter), nil
}

// NewEmbedderFromConfig 按 model.defaults.embedding 创建 Embedder 并返回向量维度；未配置或无 api_key 时使用本地 HashEmbedder
func NewEmbedderFromConfig(cfg *config.Config) (einoembed.Embedder, int, error) {
	if cfg == nil || cfg.Model.Defaults.Embedding == "" {
		return embedding.NewHashEmbedder(hashDimension), hashDimension, nil
	}
	_, pc, mi, err := lookupModel(cfg.Model.Embedding.Providers, cfg.Model.Defaults.Embedding, "Embedding")
	if err != nil {
		return nil, 0, err
	}
	dim := mi.Dimension
	if pc.APIKey == "" {
		if dim <= 0 {
			dim = hashDimension
		}
		return embedding.NewHashEmbedder(dim), dim, nil
	}
	if dim <= 0 {
		dim = 1536
	}
	return embedding.NewOpenAIEmbedder(pc.APIKey, mi.Name, pc.BaseURL), dim, nil
}
