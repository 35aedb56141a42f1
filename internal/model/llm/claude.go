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
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"log-agent/pkg/metrics"
)

// ClaudeClient Claude 客户端
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewClaudeClient 创建新的 Claude 客户端
func NewClaudeClient(model, apiKey, baseURL string) (*ClaudeClient, error) {
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
		if envURL := getEnv("ANTHROPIC_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// ChatWithContext 使用上下文聊天；system 消息合并到请求的 system 字段
func (c *ClaudeClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	var system []string
	claudeMessages := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		claudeMessages = append(claudeMessages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	request := map[string]interface{}{
		"model":       c.model,
		"messages":    claudeMessages,
		"temperature": options.Temperature,
		"max_tokens":  maxTokens,
	}
	if len(system) > 0 {
		request["system"] = strings.Join(system, "\n\n")
	}
	if len(options.Stop) > 0 {
		request["stop_sequences"] = options.Stop
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		SetResult(&result).
		Post(c.baseURL + "/messages")
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return "", fmt.Errorf("调用 Claude API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return "", fmt.Errorf("Claude API 返回错误 %d: %s", response.StatusCode(), response.String())
	}
	metrics.LLMRequestsTotal.WithLabelValues(c.provider, "ok").Inc()

	var sb strings.Builder
	for _, part := range result.Content {
		if part.Type == "" || part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("Claude API 没有返回结果")
	}
	return sb.String(), nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string {
	return c.provider
}
