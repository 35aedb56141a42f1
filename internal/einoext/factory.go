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

// Package einoext 按配置构造日志向量索引的 eino Indexer / Retriever
package einoext

import (
	"context"
	"fmt"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"log-agent/internal/pipeline/ingest"
	"log-agent/internal/pipeline/query"
	"log-agent/internal/storage/vector"
	"log-agent/pkg/config"
)

const (
	defaultBatchSize  = 100
	defaultTopK       = 10
	defaultCollection = "logs"
)

// Deps 构造索引组件需要的运行时依赖
type Deps struct {
	VectorStore vector.Store // memory 时必填
	Embedder    einoembed.Embedder
	Dimension   int // redis 建索引时使用
	TopK        int
	Threshold   float64
}

func collectionOf(cfg config.VectorConfig) string {
	if cfg.Collection == "" {
		return defaultCollection
	}
	return cfg.Collection
}

func vectorType(cfg config.VectorConfig) string {
	if cfg.Type == "" {
		return "memory"
	}
	return cfg.Type
}

func newRedisClient(ctx context.Context, cfg config.VectorConfig, dim int) (*redis.Client, error) {
	opts, err := RedisOptionsFromVectorConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis options: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if err := EnsureRedisIndex(ctx, client, collectionOf(cfg), dim); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewIndexer 根据 VectorConfig 创建 Eino Indexer（memory 用 vector.Store；redis 用 eino-ext）
func NewIndexer(ctx context.Context, cfg config.VectorConfig, deps Deps) (einoindexer.Indexer, error) {
	coll := collectionOf(cfg)
	switch t := vectorType(cfg); t {
	case "memory":
		if deps.VectorStore == nil {
			return nil, fmt.Errorf("vector type is memory but VectorStore is nil")
		}
		return ingest.NewMemoryIndexer(&ingest.MemoryIndexerConfig{
			VectorStore:       deps.VectorStore,
			Embedder:          deps.Embedder,
			DefaultCollection: coll,
			BatchSize:         defaultBatchSize,
		})
	case "redis":
		client, err := newRedisClient(ctx, cfg, deps.Dimension)
		if err != nil {
			return nil, err
		}
		idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
			Client:    client,
			KeyPrefix: KeyPrefix(coll),
			BatchSize: defaultBatchSize,
			Embedding: deps.Embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis indexer: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", t)
	}
}

// NewRetriever 根据 VectorConfig 创建 Eino Retriever（memory 用 vector.Store；redis 用 eino-ext）
func NewRetriever(ctx context.Context, cfg config.VectorConfig, deps Deps) (einoretriever.Retriever, error) {
	topK := deps.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	coll := collectionOf(cfg)
	switch t := vectorType(cfg); t {
	case "memory":
		if deps.VectorStore == nil {
			return nil, fmt.Errorf("vector type is memory but VectorStore is nil")
		}
		return query.NewMemoryRetriever(&query.MemoryRetrieverConfig{
			VectorStore:      deps.VectorStore,
			Embedder:         deps.Embedder,
			DefaultIndex:     coll,
			DefaultTopK:      topK,
			DefaultThreshold: deps.Threshold,
		})
	case "redis":
		client, err := newRedisClient(ctx, cfg, deps.Dimension)
		if err != nil {
			return nil, err
		}
		ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
			Client:    client,
			Index:     coll,
			TopK:      topK,
			Embedding: deps.Embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis retriever: %w", err)
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", t)
	}
}
