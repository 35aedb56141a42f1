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
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/codes"

	"log-agent/pkg/log"
	"log-agent/pkg/metrics"
	"log-agent/pkg/tracing"
)

// DefaultTimeout 单个工具默认执行超时
const DefaultTimeout = 60 * time.Second

// ErrorPrefix 工具失败结果的固定前缀，模型据此识别失败
const ErrorPrefix = "TOOL_ERROR:"

// ArgumentError 参数无法绑定到工具声明（所有绑定策略均失败）
type ArgumentError struct {
	Tool    string
	Reasons []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, strings.Join(e.Reasons, "; "))
}

// Kind 错误类别
func (e *ArgumentError) Kind() string { return "ArgumentError" }

// PanicError 工具执行中 panic
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprint(e.Value) }

// Kind 错误类别
func (e *PanicError) Kind() string { return "Panic" }

// ErrorKind 错误类别：实现 Kind() 的取其值；context 超时/取消为 Timeout/Canceled；
// 否则取错误链上第一个导出类型名，均未导出时为 Error
func ErrorKind(err error) string {
	var k interface{ Kind() string }
	if stderrors.As(err, &k) {
		return k.Kind()
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	if stderrors.Is(err, context.Canceled) {
		return "Canceled"
	}
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if name := exportedTypeName(e); name != "" {
			return name
		}
	}
	return "Error"
}

func exportedTypeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return ""
	}
	if r := []rune(t.Name()); unicode.IsUpper(r[0]) {
		return t.Name()
	}
	return ""
}

// ErrorText 工具失败的展示文本：TOOL_ERROR: <Kind>: <message>
func ErrorText(err error) string {
	return fmt.Sprintf("%s %s: %s", ErrorPrefix, ErrorKind(err), err.Error())
}

// Bind 按决策表把 args 绑定到工具参数，返回绑定结果与所选分支；首个成功的行胜出
func Bind(spec Spec, args Args) (Input, Branch, error) {
	if spec.MaxArgs == 0 {
		return NewInput(nil), BranchNoParams, nil
	}
	if args.IsEmpty() {
		in, err := bindPositional(spec, nil)
		if err != nil {
			return Input{}, BranchEmpty, &ArgumentError{Tool: spec.Name, Reasons: []string{err.Error()}}
		}
		return in, BranchEmpty, nil
	}

	var reasons []string
	if spec.CallKind == CallKeyword {
		in, err := bindKeyword(spec, args)
		if err == nil {
			return in, BranchKeyword, nil
		}
		reasons = append(reasons, "keyword: "+err.Error())
	}
	in, err := bindPositional(spec, args.Pairs())
	if err == nil {
		return in, BranchPositional, nil
	}
	reasons = append(reasons, "positional: "+err.Error())

	in, err = bindPositional(spec, args.Sorted())
	if err == nil {
		return in, BranchSorted, nil
	}
	reasons = append(reasons, "sorted: "+err.Error())
	return Input{}, BranchUnresolved, &ArgumentError{Tool: spec.Name, Reasons: reasons}
}

func bindKeyword(spec Spec, args Args) (Input, error) {
	values := make(map[string]any, spec.MaxArgs)
	for _, a := range args.pairs {
		p, ok := spec.param(a.Key)
		if !ok {
			return Input{}, fmt.Errorf("unexpected keyword argument %q", a.Key)
		}
		v, ok := coerce(a.Value, p.Type)
		if !ok {
			return Input{}, fmt.Errorf("argument %q: cannot use %T as %s", a.Key, a.Value, typeLabel(p.Type))
		}
		values[p.Name] = v
	}
	for _, p := range spec.Params {
		if _, ok := values[p.Name]; ok {
			continue
		}
		if p.Required {
			return Input{}, fmt.Errorf("missing required argument %q", p.Name)
		}
		if p.Default != nil {
			values[p.Name] = p.Default
		}
	}
	return NewInput(values), nil
}

func bindPositional(spec Spec, vals []Arg) (Input, error) {
	n := len(vals)
	if n < spec.MinArgs || n > spec.MaxArgs {
		return Input{}, fmt.Errorf("takes %s but %d were given", arity(spec), n)
	}
	values := make(map[string]any, spec.MaxArgs)
	for i, a := range vals {
		p := spec.Params[i]
		v, ok := coerce(a.Value, p.Type)
		if !ok {
			return Input{}, fmt.Errorf("argument %d (%s): cannot use %T as %s", i+1, p.Name, a.Value, typeLabel(p.Type))
		}
		values[p.Name] = v
	}
	for _, p := range spec.Params[n:] {
		if p.Default != nil {
			values[p.Name] = p.Default
		}
	}
	return NewInput(values), nil
}

func (s Spec) param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func arity(s Spec) string {
	if s.MinArgs == s.MaxArgs {
		return fmt.Sprintf("%d positional arguments", s.MaxArgs)
	}
	return fmt.Sprintf("%d to %d positional arguments", s.MinArgs, s.MaxArgs)
}

func typeLabel(t ParamType) string {
	if t == TypeAny {
		return "any"
	}
	return string(t)
}

// Invoker 执行工具：绑定参数、超时、panic 恢复，并将所有失败折叠为 TOOL_ERROR 文本
type Invoker struct {
	timeout time.Duration
	logger  *log.Logger
}

// InvokerOption Invoker 可选配置
type InvokerOption func(*Invoker)

// WithTimeout 设置单个工具执行超时，<=0 表示不限
func WithTimeout(d time.Duration) InvokerOption {
	return func(iv *Invoker) { iv.timeout = d }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) InvokerOption {
	return func(iv *Invoker) {
		if l != nil {
			iv.logger = l
		}
	}
}

// NewInvoker 创建 Invoker，默认超时 DefaultTimeout
func NewInvoker(opts ...InvokerOption) *Invoker {
	iv := &Invoker{timeout: DefaultTimeout, logger: log.Nop()}
	for _, o := range opts {
		o(iv)
	}
	return iv
}

// Invoke 调用工具；永不返回 error，失败体现在 Result.Status 与 Payload
func (iv *Invoker) Invoke(ctx context.Context, t Tool, req CallRequest) Result {
	ctx, span := tracing.StartToolSpan(ctx, t.Spec.Name, req.ID)
	defer span.End()
	start := time.Now()

	res := Result{CallID: req.ID, Name: t.Spec.Name}
	in, branch, err := Bind(t.Spec, req.Args)
	res.Branch = branch
	if err == nil {
		var v any
		v, err = iv.call(ctx, t, in)
		if err == nil {
			res.Status = StatusOK
			res.Payload = v
		}
	}
	if err != nil {
		res.Status = StatusError
		res.Payload = ErrorText(err)
		span.SetStatus(codes.Error, err.Error())
		iv.logger.Warn("工具调用失败", "tool", t.Spec.Name, "call_id", req.ID, "branch", branch.String(), "error", err)
	}

	metrics.ToolDuration.WithLabelValues(t.Spec.Name).Observe(time.Since(start).Seconds())
	metrics.ToolCallsTotal.WithLabelValues(t.Spec.Name, string(res.Status)).Inc()
	return res
}

type outcome struct {
	v   any
	err error
}

func (iv *Invoker) call(ctx context.Context, t Tool, in Input) (any, error) {
	if iv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.timeout)
		defer cancel()
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &PanicError{Value: r}}
			}
		}()
		v, err := t.Func(ctx, in)
		done <- outcome{v: v, err: err}
	}()
	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool %s: %w", t.Spec.Name, ctx.Err())
	}
}
