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

// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误；HTTP/gRPC 层按 errors.Is 映射状态码
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")

	// ErrDuplicateTool 同名工具重复注册（配置错误，启动期即失败）
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrUpstreamUnavailable 模型提供方不可用（重试耗尽）
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInconclusive Agent 超过最大轮数仍未给出最终回答
	ErrInconclusive = errors.New("agent inconclusive")
	// ErrTimeout 单轮或整段对话超时
	ErrTimeout = errors.New("timeout")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is errors.Is 的透传，调用方无需同时引入标准库 errors
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As errors.As 的透传
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join 合并两个哨兵，使结果同时满足 errors.Is(kind) 与 errors.Is(cause)
func Join(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
