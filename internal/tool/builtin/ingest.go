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

// PullLogs pull_logs：从 CloudWatch 拉取最新日志
func PullLogs(in Ingester) tool.Tool {
	return tool.MustNew("pull_logs", "Fetch latest logs from AWS CloudWatch.", nil,
		func(ctx context.Context, _ tool.Input) (any, error) {
			return in.PullAndSave(ctx)
		})
}
