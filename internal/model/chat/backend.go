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

// Package chat 基于 eino ToolCallingChatModel 的 Agent 对话后端
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"log-agent/internal/agent"
	"log-agent/internal/tool"
	"log-agent/pkg/config"
	"log-agent/pkg/errors"
	"log-agent/pkg/log"
	"log-agent/pkg/metrics"
)

// DefaultSystemPrompt 未配置 agent.system_prompt 时使用
const DefaultSystemPrompt = "You are an intelligent log analysis agent. " +
	"Use the available tools to inspect logs, detect issues, and produce root-cause explanations. " +
	"Call tools whenever needed. Respond clearly."

// RetryPolicy 模型调用的指数退避参数
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryPolicyFrom 由 agent.retry 配置生成
func RetryPolicyFrom(c config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      c.MaxRetries,
		InitialInterval: config.ParseDuration(c.InitialInterval, 500*time.Millisecond),
		MaxInterval:     config.ParseDuration(c.MaxInterval, 5*time.Second),
	}
}

// EinoBackend 实现 agent.ChatBackend
type EinoBackend struct {
	model    model.ToolCallingChatModel
	system   string
	provider string
	retry    RetryPolicy
	logger   *log.Logger
}

var _ agent.ChatBackend = (*EinoBackend)(nil)

// Option EinoBackend 可选项
type Option func(*EinoBackend)

// WithSystemPrompt 覆盖系统提示词
func WithSystemPrompt(p string) Option {
	return func(b *EinoBackend) {
		if p != "" {
			b.system = p
		}
	}
}

// WithRetry 设置重试策略
func WithRetry(p RetryPolicy) Option {
	return func(b *EinoBackend) { b.retry = p }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(b *EinoBackend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithProvider 指标中的 provider 标签
func WithProvider(p string) Option {
	return func(b *EinoBackend) { b.provider = p }
}

// NewEinoBackend 将工具声明绑定到模型上
func NewEinoBackend(cm model.ToolCallingChatModel, tools []*schema.ToolInfo, opts ...Option) (*EinoBackend, error) {
	b := &EinoBackend{
		system:   DefaultSystemPrompt,
		provider: "openai",
		retry:    RetryPolicy{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second},
		logger:   log.Nop(),
	}
	for _, o := range opts {
		o(b)
	}
	if len(tools) > 0 {
		bound, err := cm.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("绑定工具失败: %w", err)
		}
		cm = bound
	}
	b.model = cm
	return b, nil
}

// NewOpenAIChatModel 创建 OpenAI 兼容的 ToolCallingChatModel
func NewOpenAIChatModel(ctx context.Context, modelName, apiKey, baseURL string, temperature float32) (model.ToolCallingChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chat model %q: api_key not configured", modelName)
	}
	cfg := &openai.ChatModelConfig{
		Model:       modelName,
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Temperature: &temperature,
	}
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return cm, nil
}

// Send 实现 agent.ChatBackend；仅临时失败按退避重试，重试耗尽或不可重试时返回 ErrUpstreamUnavailable
func (b *EinoBackend) Send(ctx context.Context, input string) (*agent.Reply, error) {
	msgs := []*schema.Message{schema.SystemMessage(b.system), schema.UserMessage(input)}

	var (
		out     *schema.Message
		attempt int
	)
	op := func() error {
		attempt++
		m, err := b.model.Generate(ctx, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isTransient(err) {
				b.logger.Warn("模型调用失败，不可重试", "attempt", attempt, "error", err)
				return backoff.Permanent(err)
			}
			b.logger.Warn("模型调用失败", "attempt", attempt, "error", err)
			return err
		}
		out = m
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b.policy(), ctx))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(b.provider, "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Join(errors.ErrUpstreamUnavailable, err)
	}
	metrics.LLMRequestsTotal.WithLabelValues(b.provider, "ok").Inc()
	return toReply(out), nil
}

func (b *EinoBackend) policy() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if b.retry.InitialInterval > 0 {
		eb.InitialInterval = b.retry.InitialInterval
	}
	if b.retry.MaxInterval > 0 {
		eb.MaxInterval = b.retry.MaxInterval
	}
	eb.MaxElapsedTime = 0
	retries := b.retry.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(eb, uint64(retries))
}

// toReply 转换模型消息；缺少 ID 的工具调用补 uuid
func toReply(m *schema.Message) *agent.Reply {
	if m == nil {
		return &agent.Reply{}
	}
	r := &agent.Reply{Content: m.Content}
	for _, tc := range m.ToolCalls {
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		r.ToolCalls = append(r.ToolCalls, tool.CallRequest{ID: id, Name: tc.Function.Name, Args: tool.ParseArgs(tc.Function.Arguments)})
	}
	return r
}
