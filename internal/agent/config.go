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

package agent

import (
	"time"

	"log-agent/internal/tool"
	"log-agent/pkg/config"
)

// DefaultMaxTurns 未配置时的最大轮数
const DefaultMaxTurns = 8

// Config 循环参数
type Config struct {
	MaxTurns      int
	TurnTimeout   time.Duration // 0 表示不限
	RunTimeout    time.Duration // 0 表示不限
	ToolTimeout   time.Duration
	ParallelTools bool
}

// ConfigFrom 由配置文件的 agent 段生成
func ConfigFrom(c config.AgentConfig) Config {
	return Config{
		MaxTurns:      c.MaxTurns,
		TurnTimeout:   config.ParseDuration(c.TurnTimeout, 0),
		RunTimeout:    config.ParseDuration(c.RunTimeout, 0),
		ToolTimeout:   config.ParseDuration(c.ToolTimeout, tool.DefaultTimeout),
		ParallelTools: c.ParallelTools,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = tool.DefaultTimeout
	}
	return c
}
