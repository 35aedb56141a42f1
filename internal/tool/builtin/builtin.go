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

// Package builtin 日志分析 Agent 的内置工具
package builtin

import (
	"context"

	"log-agent/internal/pipeline/ingest"
	"log-agent/internal/pipeline/query"
	"log-agent/internal/tool"
	"log-agent/internal/tool/registry"
)

// Ingester 日志拉取
type Ingester interface {
	PullAndSave(ctx context.Context) (ingest.Report, error)
}

// Analyzer 日志分析
type Analyzer interface {
	QueryLogs(ctx context.Context, question string) (*query.Answer, error)
	ErrorLogs(ctx context.Context, limit int) (*query.ErrorLogs, error)
	SummaryLogs(ctx context.Context) (*query.Summary, error)
	HealthReport(ctx context.Context) (*query.Health, error)
}

// Tools 按固定顺序返回全部内置工具
func Tools(in Ingester, an Analyzer) []tool.Tool {
	return []tool.Tool{
		PullLogs(in),
		QueryLogs(an),
		SummarizeLogs(an),
		ErrorLogs(an),
		HealthReport(an),
	}
}

// Register 注册全部内置工具；重名时返回 ErrDuplicateTool
func Register(reg *registry.Registry, in Ingester, an Analyzer) error {
	for _, t := range Tools(in, an) {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
