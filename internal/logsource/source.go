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

// Package logsource 从外部日志服务拉取事件
package logsource

import (
	"context"
	"fmt"

	"log-agent/pkg/config"
	"log-agent/pkg/log"
)

// Event 一条日志事件
type Event struct {
	Timestamp int64  `json:"timestamp"` // 毫秒
	Stream    string `json:"logStreamName"`
	Message   string `json:"message"`
}

// Source 日志来源
type Source interface {
	// Pull 拉取 startMS（含）之后的全部事件
	Pull(ctx context.Context, startMS int64) ([]Event, error)
	// Name 来源名，用于日志与 span
	Name() string
}

// New 根据配置创建日志来源
func New(ctx context.Context, cfg config.SourceConfig, logger *log.Logger) (Source, error) {
	switch cfg.Type {
	case "", "cloudwatch":
		return NewCloudWatchSource(ctx, cfg, logger)
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("source.file_path 不能为空")
		}
		return NewFileSource(nil, cfg.FilePath), nil
	default:
		return nil, fmt.Errorf("不支持的日志来源类型: %s", cfg.Type)
	}
}
