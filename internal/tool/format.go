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

package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stringify 将工具返回值转为展示文本：string、Stringer、[]byte、error、JSON。
// 转换失败或 String/Error/MarshalJSON 自身 panic 时退化为 Go 语法表示
func Stringify(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = goSyntax(v, r)
		}
	}()
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case []byte:
		return string(x)
	case error:
		return x.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return goSyntax(v, err)
	}
	return string(b)
}

// goSyntax %#v 表示；连它也失败时只保留类型与原因
func goSyntax(v any, cause any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("<%T: unprintable: %v>", v, cause)
		}
	}()
	return fmt.Sprintf("%#v", v)
}

// RenderBlock 单个工具结果回填给模型的文本块
func RenderBlock(r Result) string {
	return fmt.Sprintf("[tool_output name=%s id=%s]\n%s\n[/tool_output]\n", r.Name, r.CallID, r.Text())
}

// RenderNextInput 下一轮输入：助手原文 + 空行 + 以换行连接的结果块
func RenderNextInput(content string, results []Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = RenderBlock(r)
	}
	return content + "\n\n" + strings.Join(blocks, "\n")
}
