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

// Package query 基于日志文件与向量索引的分析函数：语义查询、错误筛选、摘要与健康报告
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einoretriever "github.com/cloudwego/eino/components/retriever"

	"log-agent/internal/model/llm"
	"log-agent/internal/pipeline/ingest"
	"log-agent/internal/storage/logfile"
	"log-agent/pkg/errors"
	"log-agent/pkg/log"
)

// NoRelevantLogs 检索结果为空时的回答
const NoRelevantLogs = "No relevant logs found."

// NoLogs 日志文件为空时的摘要
const NoLogs = "No logs available."

var (
	errorMarkers   = []string{"error", "exception", "fail", "fatal", "panic", "critical"}
	warningMarkers = []string{"warn"}
)

// Config 分析参数
type Config struct {
	TopK         int
	SummaryLines int
	ErrorLimit   int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.SummaryLines <= 0 {
		c.SummaryLines = 200
	}
	if c.ErrorLimit <= 0 {
		c.ErrorLimit = 200
	}
	return c
}

// Answer 语义查询结果
type Answer struct {
	Answer   string   `json:"answer"`
	Evidence []string `json:"evidence"`
}

// ErrorLogs 错误日志结果
type ErrorLogs struct {
	Count int      `json:"count"`
	Logs  []string `json:"logs"`
}

// Summary 摘要结果
type Summary struct {
	Summary string `json:"summary"`
	Lines   int    `json:"lines"`
}

// Health 健康报告
type Health struct {
	Status       string         `json:"status"` // healthy | degraded | critical
	TotalLines   int            `json:"total_lines"`
	ErrorCount   int            `json:"error_count"`
	WarningCount int            `json:"warning_count"`
	ErrorRate    float64        `json:"error_rate"`
	StreamErrors map[string]int `json:"stream_errors"`
	Report       string         `json:"report"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// Service 日志分析
type Service struct {
	retriever einoretriever.Retriever
	file      *logfile.File
	llm       llm.Client
	cfg       Config
	logger    *log.Logger
	now       func() time.Time
}

// NewService 创建 Service；client 为 nil 时需要 LLM 的操作返回 ErrUpstreamUnavailable
func NewService(ret einoretriever.Retriever, file *logfile.File, client llm.Client, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		retriever: ret,
		file:      file,
		llm:       client,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) generate(ctx context.Context, system, prompt string) (string, error) {
	if s.llm == nil {
		return "", errors.Wrap(errors.ErrUpstreamUnavailable, "no LLM configured")
	}
	out, err := llm.Generate(ctx, s.llm, system, prompt, llm.GenerateOptions{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Join(errors.ErrUpstreamUnavailable, err)
	}
	return strings.TrimSpace(out), nil
}

const queryPrompt = `USER QUESTION:
%s

RELEVANT LOGS:
%s

TASK:
- Analyze whether the logs answer the user's question.
- If the question is about failures (e.g., postgres fail, service crash), determine if such events occurred.
- Provide a clear YES/NO answer when appropriate.
- Quote the exact log lines as evidence.
- Keep the answer short and actionable.

Respond in JSON with fields:
- answer
- evidence (list of log lines)`

// QueryLogs 检索相关日志行并让 LLM 作答
func (s *Service) QueryLogs(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "question is empty")
	}
	docs, err := s.retriever.Retrieve(ctx, question, einoretriever.WithTopK(s.cfg.TopK))
	if err != nil {
		return nil, fmt.Errorf("检索日志失败: %w", err)
	}
	if len(docs) == 0 {
		return &Answer{Answer: NoRelevantLogs, Evidence: []string{}}, nil
	}
	lines := make([]string, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, d.Content)
	}

	raw, err := s.generate(ctx,
		"You are a log analysis assistant for EC2 system logs.",
		fmt.Sprintf(queryPrompt, question, strings.Join(lines, "\n")))
	if err != nil {
		return nil, err
	}
	var ans Answer
	if err := json.Unmarshal([]byte(stripFence(raw)), &ans); err != nil || ans.Answer == "" {
		s.logger.Debug("LLM 未返回 JSON，按纯文本处理", "error", err)
		return &Answer{Answer: raw, Evidence: lines}, nil
	}
	if ans.Evidence == nil {
		ans.Evidence = []string{}
	}
	return &ans, nil
}

// stripFence 去掉 ```json ... ``` 包裹
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func containsAny(line string, markers []string) bool {
	l := strings.ToLower(line)
	for _, m := range markers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// IsErrorLine 是否包含错误标记（大小写不敏感）
func IsErrorLine(line string) bool { return containsAny(line, errorMarkers) }

// ErrorLogs 最近 limit 条错误日志；limit<=0 时使用配置值
func (s *Service) ErrorLogs(ctx context.Context, limit int) (*ErrorLogs, error) {
	if limit <= 0 {
		limit = s.cfg.ErrorLimit
	}
	logs, err := s.file.Filter(IsErrorLine, limit)
	if err != nil {
		return nil, fmt.Errorf("读取日志文件失败: %w", err)
	}
	if logs == nil {
		logs = []string{}
	}
	return &ErrorLogs{Count: len(logs), Logs: logs}, nil
}

// SummaryLogs 对最近 summary_lines 行做摘要
func (s *Service) SummaryLogs(ctx context.Context) (*Summary, error) {
	lines, err := s.file.Tail(s.cfg.SummaryLines)
	if err != nil {
		return nil, fmt.Errorf("读取日志文件失败: %w", err)
	}
	if len(lines) == 0 {
		return &Summary{Summary: NoLogs}, nil
	}
	out, err := s.generate(ctx,
		"You summarize system logs for an on-call engineer.",
		"Summarize the following log lines into a short readable report. "+
			"Group related events, call out errors and anomalies, and mention the affected streams.\n\nLOGS:\n"+
			strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}
	return &Summary{Summary: out, Lines: len(lines)}, nil
}

// HealthReport 统计错误与告警并生成健康报告；LLM 不可用时报告退化为统计文本
func (s *Service) HealthReport(ctx context.Context) (*Health, error) {
	h := &Health{StreamErrors: map[string]int{}, GeneratedAt: s.now().UTC()}
	var recentErrors []string
	err := s.file.Scan(func(line string) bool {
		h.TotalLines++
		switch {
		case IsErrorLine(line):
			h.ErrorCount++
			h.StreamErrors[streamOf(line)]++
			recentErrors = append(recentErrors, line)
			if len(recentErrors) > 20 {
				recentErrors = recentErrors[1:]
			}
		case containsAny(line, warningMarkers):
			h.WarningCount++
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("读取日志文件失败: %w", err)
	}
	if h.TotalLines > 0 {
		h.ErrorRate = float64(h.ErrorCount) / float64(h.TotalLines)
	}
	h.Status = statusOf(h.ErrorCount, h.ErrorRate)

	stats := fmt.Sprintf("status=%s total=%d errors=%d warnings=%d error_rate=%.4f",
		h.Status, h.TotalLines, h.ErrorCount, h.WarningCount, h.ErrorRate)
	if h.TotalLines == 0 {
		h.Report = NoLogs
		return h, nil
	}
	report, err := s.generate(ctx,
		"You are a site reliability assistant.",
		"Write a brief system health report (status, main issues, likely root causes, next steps) from these statistics and recent error lines.\n\nSTATS: "+
			stats+"\n\nRECENT ERRORS:\n"+strings.Join(recentErrors, "\n"))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("健康报告生成失败，返回统计结果", "error", err)
		report = stats
	}
	h.Report = report
	return h, nil
}

// statusOf 0 个错误为 healthy，错误率低于 5% 为 degraded，否则 critical
func statusOf(errorCount int, rate float64) string {
	switch {
	case errorCount == 0:
		return "healthy"
	case rate < 0.05:
		return "degraded"
	default:
		return "critical"
	}
}

// streamOf 取 "<iso> | <stream> | <message>" 中的 stream；非该格式时为 "-"
func streamOf(line string) string {
	_, stream, _, ok := ingest.SplitLine(line)
	if !ok || stream == "" {
		return "-"
	}
	return stream
}
