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

package ingest

import (
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"log-agent/internal/logsource"
)

// TimeLayout 日志行时间戳格式（UTC，微秒，带 +00:00 偏移）
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// FormatLine 格式化为 "<iso> | <stream> | <message>"；stream 为空时写 "-"
func FormatLine(e logsource.Event) string {
	stream := e.Stream
	if stream == "" {
		stream = "-"
	}
	ts := time.UnixMilli(e.Timestamp).UTC().Format(TimeLayout)
	return ts + " | " + stream + " | " + strings.TrimRight(e.Message, "\r\n")
}

// SplitLine 按 " | " 拆出时间戳、stream 与消息三段；不足三段时 ok=false
func SplitLine(line string) (ts, stream, message string, ok bool) {
	parts := strings.SplitN(line, " | ", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// EventToDocument 日志行转为待索引文档；ID 由行内容派生，重复入库同一行不产生新向量
func EventToDocument(e logsource.Event, line string) *schema.Document {
	stream := e.Stream
	if stream == "" {
		stream = "-"
	}
	return &schema.Document{
		ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(line)).String(),
		Content: line,
		MetaData: map[string]any{
			"timestamp":  e.Timestamp,
			"log_stream": stream,
		},
	}
}
