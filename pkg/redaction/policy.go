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

package redaction

import "log-agent/pkg/config"

// Policy 脱敏策略：按顺序应用的正则规则
type Policy struct {
	Rules []Rule
}

// Rule 单条规则；Pattern 为 RE2 正则，命中的片段按 Mode 处理
type Rule struct {
	Name    string
	Pattern string
	Mode    Mode
	Salt    string // Hash 模式的 salt（可选）
}

// Mode 脱敏模式
type Mode string

const (
	ModeRedact  Mode = "redact"  // 替换为 ***REDACTED***
	ModeHash    Mode = "hash"    // 替换为 SHA256 hash
	ModeEncrypt Mode = "encrypt" // AES-GCM 加密（需要 key）
	ModeRemove  Mode = "remove"  // 删除命中片段
)

// DefaultRules 内置规则：常见凭据与个人信息
func DefaultRules() []Rule {
	return []Rule{
		{Name: "aws_access_key", Pattern: `\b(AKIA|ASIA)[0-9A-Z]{16}\b`, Mode: ModeRedact},
		{Name: "bearer_token", Pattern: `(?i)\bbearer\s+[a-z0-9\-._~+/]+=*`, Mode: ModeRedact},
		{Name: "api_key", Pattern: `\bsk-[A-Za-z0-9_\-]{16,}\b`, Mode: ModeRedact},
		{Name: "password_kv", Pattern: `(?i)\b(password|passwd|pwd|secret)=\S+`, Mode: ModeRedact},
		{Name: "email", Pattern: `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`, Mode: ModeHash},
	}
}

// LoadPolicyFromConfig 从配置加载策略；未启用时返回 nil
func LoadPolicyFromConfig(c config.RedactionConfig) *Policy {
	if !c.Enable {
		return nil
	}
	p := &Policy{}
	if c.Builtin {
		p.Rules = append(p.Rules, DefaultRules()...)
	}
	for _, r := range c.Rules {
		p.Rules = append(p.Rules, Rule{Name: r.Name, Pattern: r.Pattern, Mode: Mode(r.Mode), Salt: r.Salt})
	}
	return p
}
