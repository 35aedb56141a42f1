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

// Package tool 定义工具元数据、调用参数与调用结果，并实现带回退策略的调用器。
package tool

import (
	"context"
	"fmt"

	"log-agent/pkg/errors"
)

// ParamType 参数类型，取值与 JSON Schema 基本类型一致
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeAny     ParamType = ""
)

// Param 工具参数声明
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
}

// CallKind 工具接受参数的方式，注册时计算一次
type CallKind int

const (
	// CallNone 不接受参数
	CallNone CallKind = iota
	// CallPositional 只按位置绑定（参数名对模型无意义）
	CallPositional
	// CallKeyword 先按名称绑定，失败再按位置
	CallKeyword
)

func (k CallKind) String() string {
	switch k {
	case CallNone:
		return "none"
	case CallPositional:
		return "positional"
	case CallKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// Spec 工具元数据
type Spec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []Param  `json:"params"`
	MinArgs     int      `json:"min_args"`
	MaxArgs     int      `json:"max_args"`
	CallKind    CallKind `json:"-"`
}

// Func 工具实现；返回值由调用方转为展示文本
type Func func(ctx context.Context, in Input) (any, error)

// Tool 已注册的工具，注册后不可变
type Tool struct {
	Spec Spec
	Func Func
}

// Option 构造工具时的可选项
type Option func(*Spec)

// PositionalOnly 参数只按位置绑定
func PositionalOnly() Option {
	return func(s *Spec) {
		if s.MaxArgs > 0 {
			s.CallKind = CallPositional
		}
	}
}

// New 创建工具并计算 MinArgs/MaxArgs/CallKind；必填参数必须排在可选参数之前
func New(name, description string, params []Param, fn Func, opts ...Option) (Tool, error) {
	if name == "" {
		return Tool{}, errors.Wrap(errors.ErrInvalidArg, "tool name is empty")
	}
	if fn == nil {
		return Tool{}, errors.Wrapf(errors.ErrInvalidArg, "tool %s has nil func", name)
	}
	spec := Spec{Name: name, Description: description, Params: append([]Param(nil), params...)}
	seen := make(map[string]struct{}, len(params))
	optional := false
	for _, p := range params {
		if p.Name == "" {
			return Tool{}, errors.Wrapf(errors.ErrInvalidArg, "tool %s has unnamed param", name)
		}
		if _, dup := seen[p.Name]; dup {
			return Tool{}, errors.Wrapf(errors.ErrInvalidArg, "tool %s declares param %s twice", name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Required {
			if optional {
				return Tool{}, errors.Wrapf(errors.ErrInvalidArg, "tool %s: required param %s after optional", name, p.Name)
			}
			spec.MinArgs++
		} else {
			optional = true
		}
	}
	spec.MaxArgs = len(params)
	if spec.MaxArgs == 0 {
		spec.CallKind = CallNone
	} else {
		spec.CallKind = CallKeyword
	}
	for _, o := range opts {
		o(&spec)
	}
	return Tool{Spec: spec, Func: fn}, nil
}

// MustNew 同 New，出错时 panic（仅用于包级静态定义）
func MustNew(name, description string, params []Param, fn Func, opts ...Option) Tool {
	t, err := New(name, description, params, fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name 工具名
func (t Tool) Name() string { return t.Spec.Name }

// CallRequest 模型发起的一次工具调用
type CallRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args Args   `json:"args"`
}

// Status 调用结果状态
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Branch 调用器选择的分派分支（决策表行号）
type Branch int

const (
	BranchUnresolved Branch = iota
	BranchNoParams          // 工具不接受参数，忽略 args
	BranchKeyword           // 按名称绑定
	BranchPositional        // 按插入顺序位置绑定
	BranchSorted            // 按 key 排序后位置绑定
	BranchEmpty             // 无 args 但工具声明了参数
)

func (b Branch) String() string {
	switch b {
	case BranchNoParams:
		return "no_params"
	case BranchKeyword:
		return "keyword"
	case BranchPositional:
		return "positional"
	case BranchSorted:
		return "sorted"
	case BranchEmpty:
		return "empty"
	default:
		return "unresolved"
	}
}

// Result 工具调用结果；Payload 为工具原始返回值，错误时为 TOOL_ERROR 文本
type Result struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Payload any    `json:"payload"`
	Branch  Branch `json:"branch"`
}

// Text 结果的展示文本
func (r Result) Text() string {
	return Stringify(r.Payload)
}

// Unknown 未注册工具的结果
func Unknown(req CallRequest) Result {
	return Result{
		CallID:  req.ID,
		Name:    req.Name,
		Status:  StatusUnknown,
		Payload: "TOOL_ERROR: unknown tool " + req.Name,
	}
}
