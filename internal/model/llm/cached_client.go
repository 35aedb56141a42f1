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

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"log-agent/internal/storage/cache"
	"log-agent/pkg/errors"
	"log-agent/pkg/metrics"
)

// CachedClient 以请求内容为键缓存 LLM 文本结果；日志未变化时重复的摘要与健康报告不再调用模型
type CachedClient struct {
	inner Client
	store cache.Store
	ttl   time.Duration
}

// NewCachedClient 创建带缓存的客户端；store 为 nil 时返回 inner 本身
func NewCachedClient(inner Client, store cache.Store, ttl time.Duration) Client {
	if store == nil || inner == nil {
		return inner
	}
	return &CachedClient{inner: inner, store: store, ttl: ttl}
}

// ChatWithContext 命中缓存时直接返回；缓存读写失败不影响调用
func (c *CachedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	key := c.key(messages, options)
	var out string
	if err := c.store.Get(ctx, key, &out); err == nil {
		metrics.LLMCacheTotal.WithLabelValues("hit").Inc()
		return out, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		metrics.LLMCacheTotal.WithLabelValues("error").Inc()
	} else {
		metrics.LLMCacheTotal.WithLabelValues("miss").Inc()
	}
	out, err := c.inner.ChatWithContext(ctx, messages, options)
	if err != nil {
		return "", err
	}
	_ = c.store.Set(ctx, key, out, c.ttl)
	return out, nil
}

func (c *CachedClient) key(messages []Message, options GenerateOptions) string {
	b, _ := json.Marshal(struct {
		Provider string          `json:"p"`
		Model    string          `json:"m"`
		Messages []Message       `json:"msgs"`
		Options  GenerateOptions `json:"opts"`
	}{c.inner.Provider(), c.inner.Model(), messages, options})
	sum := sha256.Sum256(b)
	return "llm:" + hex.EncodeToString(sum[:])
}

// Model 返回底层 Client 的模型名称
func (c *CachedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称
func (c *CachedClient) Provider() string { return c.inner.Provider() }
