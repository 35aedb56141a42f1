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

// Package redaction 在日志写入文件与索引前屏蔽其中的凭据与个人信息。
package redaction

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
)

// RedactedText ModeRedact 的替换文本
const RedactedText = "***REDACTED***"

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Engine 脱敏引擎
type Engine struct {
	rules      []compiledRule
	encryptKey []byte // For encryption mode
}

// NewEngine 编译策略中的规则；policy 为 nil 时返回不做处理的引擎
func NewEngine(policy *Policy, encryptKey []byte) (*Engine, error) {
	e := &Engine{encryptKey: encryptKey}
	if policy == nil {
		return e, nil
	}
	for _, r := range policy.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction rule %q: %w", r.Name, err)
		}
		switch r.Mode {
		case ModeRedact, ModeHash, ModeRemove:
		case ModeEncrypt:
			if _, err := aes.NewCipher(encryptKey); err != nil {
				return nil, fmt.Errorf("redaction rule %q: encrypt key: %w", r.Name, err)
			}
		case "":
			r.Mode = ModeRedact
		default:
			return nil, fmt.Errorf("redaction rule %q: unknown mode %q", r.Name, r.Mode)
		}
		e.rules = append(e.rules, compiledRule{Rule: r, re: re})
	}
	return e, nil
}

// Enabled 是否有生效的规则
func (e *Engine) Enabled() bool { return e != nil && len(e.rules) > 0 }

// Redact 依次应用全部规则
func (e *Engine) Redact(text string) string {
	if e == nil {
		return text
	}
	for _, r := range e.rules {
		text = r.re.ReplaceAllStringFunc(text, func(m string) string {
			return e.mask(r.Rule, m)
		})
	}
	return text
}

func (e *Engine) mask(r Rule, value string) string {
	switch r.Mode {
	case ModeHash:
		return e.hashValue(value, r.Salt)
	case ModeEncrypt:
		enc, err := e.encryptValue(value)
		if err != nil {
			return RedactedText
		}
		return enc
	case ModeRemove:
		return ""
	default:
		return RedactedText
	}
}

// hashValue 计算片段的 SHA256 hash（截取前 16 个十六进制字符）
func (e *Engine) hashValue(value string, salt string) string {
	h := sha256.New()
	h.Write([]byte(value))
	if salt != "" {
		h.Write([]byte(salt))
	}
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// encryptValue 加密片段（AES-GCM）
func (e *Engine) encryptValue(value string) (string, error) {
	if len(e.encryptKey) == 0 {
		return "", fmt.Errorf("encryption key not configured")
	}

	block, err := aes.NewCipher(e.encryptKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(value), nil)
	return "enc:" + hex.EncodeToString(ciphertext), nil
}
