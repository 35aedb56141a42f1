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
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"log-agent/pkg/config"
)

// LLMLimitConfig LLM Provider 限流配置
type LLMLimitConfig struct {
	TokensPerMinute   int     // 每分钟 token 配额
	RequestsPerMinute float64 // 每分钟请求数
	MaxConcurrent     int     // 最大并发请求数
}

// LimitsFromConfig 由 rate_limits.llm 配置段生成
func LimitsFromConfig(c map[string]config.LLMRateLimitConfig) map[string]LLMLimitConfig {
	out := make(map[string]LLMLimitConfig, len(c))
	for provider, l := range c {
		out[provider] = LLMLimitConfig{
			TokensPerMinute:   l.TokensPerMinute,
			RequestsPerMinute: l.RequestsPerMinute,
			MaxConcurrent:     l.MaxConcurrent,
		}
	}
	return out
}

// LLMRateLimiter LLM Provider 维度的限流器，支持 token budget + RPS + 并发控制
type LLMRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*llmLimiter // provider -> limiter
	defaults LLMLimitConfig
}

type llmLimiter struct {
	requestLimiter *rate.Limiter
	tokenLimiter   *rate.Limiter
	semaphore      chan struct{}
	config         LLMLimitConfig
}

// NewLLMRateLimiter 创建 LLM 限流器；defaults 为 nil 时使用内置默认值
func NewLLMRateLimiter(configs map[string]LLMLimitConfig, defaults *LLMLimitConfig) *LLMRateLimiter {
	d := LLMLimitConfig{
		TokensPerMinute:   90000,
		RequestsPerMinute: 3500,
		MaxConcurrent:     50,
	}
	if defaults != nil {
		d = *defaults
	}
	l := &LLMRateLimiter{limiters: make(map[string]*llmLimiter), defaults: d}
	for provider, c := range configs {
		l.limiters[provider] = newLLMLimiter(c)
	}
	return l
}

func newLLMLimiter(c LLMLimitConfig) *llmLimiter {
	limiter := &llmLimiter{config: c}
	if c.RequestsPerMinute > 0 {
		burst := int(c.RequestsPerMinute / 60.0 * 2) // burst = 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		limiter.requestLimiter = rate.NewLimiter(rate.Limit(c.RequestsPerMinute/60.0), burst)
	}
	if c.TokensPerMinute > 0 {
		burst := c.TokensPerMinute / 60 * 2
		if burst < 1 {
			burst = 1
		}
		limiter.tokenLimiter = rate.NewLimiter(rate.Limit(float64(c.TokensPerMinute)/60.0), burst)
	}
	if c.MaxConcurrent > 0 {
		limiter.semaphore = make(chan struct{}, c.MaxConcurrent)
	}
	return limiter
}

func (l *LLMRateLimiter) get(provider string) *llmLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[provider]
	if !ok {
		limiter = newLLMLimiter(l.defaults)
		l.limiters[provider] = limiter
	}
	return limiter
}

// Wait 等待获取执行许可（阻塞直到可以执行）；成功后必须调用 Release
func (l *LLMRateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	limiter := l.get(provider)
	if limiter.requestLimiter != nil {
		if err := limiter.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if limiter.tokenLimiter != nil && estimatedTokens > 0 {
		n := estimatedTokens
		if b := limiter.tokenLimiter.Burst(); n > b {
			n = b
		}
		if err := limiter.tokenLimiter.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if limiter.semaphore != nil {
		select {
		case limiter.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot（在 LLM 调用完成后调用）
func (l *LLMRateLimiter) Release(provider string) {
	limiter := l.get(provider)
	if limiter.semaphore != nil {
		select {
		case <-limiter.semaphore:
		default:
		}
	}
}

// GetStats 获取限流统计信息
func (l *LLMRateLimiter) GetStats(provider string) map[string]interface{} {
	limiter := l.get(provider)
	stats := map[string]interface{}{
		"requests_per_minute": limiter.config.RequestsPerMinute,
		"tokens_per_minute":   limiter.config.TokensPerMinute,
		"max_concurrent":      limiter.config.MaxConcurrent,
	}
	if limiter.semaphore != nil {
		stats["current_concurrent"] = len(limiter.semaphore)
		stats["available_slots"] = cap(limiter.semaphore) - len(limiter.semaphore)
	}
	return stats
}
