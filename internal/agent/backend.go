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
	"context"

	"log-agent/internal/tool"
)

// Reply 模型一次回复：文本与按顺序排列的工具调用请求
type Reply struct {
	Content   string
	ToolCalls []tool.CallRequest
}

// ChatBackend 支持工具调用的对话模型；每次 Send 只携带当前输入（单轮记忆）
type ChatBackend interface {
	Send(ctx context.Context, input string) (*Reply, error)
}

// BackendFunc 函数适配 ChatBackend
type BackendFunc func(ctx context.Context, input string) (*Reply, error)

// Send 实现 ChatBackend
func (f BackendFunc) Send(ctx context.Context, input string) (*Reply, error) {
	return f(ctx, input)
}
