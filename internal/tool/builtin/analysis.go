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

package builtin

import (
	"context"

	"log-agent/internal/tool"
)

// QueryLogs query_logs：语义检索日志并回答问题。
// 唯一参数是自由文本，模型给出的 key 名不可靠，直接按位置绑定。
func QueryLogs(an Analyzer) tool.Tool {
	return tool.MustNew("query_logs", "Search logs using semantic RAG.",
		[]tool.Param{{Name: "question", Type: tool.TypeString, Description: "Question about the logs", Required: true}},
		func(ctx context.Context, in tool.Input) (any, error) {
			return an.QueryLogs(ctx, in.String("question"))
		},
		tool.PositionalOnly())
}

// SummarizeLogs summarize_logs
func SummarizeLogs(an Analyzer) tool.Tool {
	return tool.MustNew("summarize_logs", "Summarize log chunks into readable text.", nil,
		func(ctx context.Context, _ tool.Input) (any, error) {
			return an.SummaryLogs(ctx)
		})
}

// ErrorLogs get_error_logs；limit 可选
func ErrorLogs(an Analyzer) tool.Tool {
	return tool.MustNew("get_error_logs", "Return only error logs.",
		[]tool.Param{{Name: "limit", Type: tool.TypeInteger, Description: "Maximum number of lines (defaults to the configured error limit)"}},
		func(ctx context.Context, in tool.Input) (any, error) {
			return an.ErrorLogs(ctx, in.Int("limit", 0))
		})
}

// HealthReport health_report
func HealthReport(an Analyzer) tool.Tool {
	return tool.MustNew("health_report", "Generate a system health status report.", nil,
		func(ctx context.Context, _ tool.Input) (any, error) {
			return an.HealthReport(ctx)
		})
}
