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

// Package agent 实现工具调用循环：发送输入，执行模型请求的工具，把结果回填为下一轮输入，直到模型给出最终回答。
package agent

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"log-agent/internal/tool"
	"log-agent/internal/tool/registry"
	"log-agent/pkg/errors"
	"log-agent/pkg/log"
	"log-agent/pkg/metrics"
	"log-agent/pkg/tracing"
)

// Agent 入口：持有模型后端与只读工具注册表；每次 Run 独立，可并发
type Agent struct {
	backend  ChatBackend
	registry *registry.Registry
	invoker  *tool.Invoker
	cfg      Config
	logger   *log.Logger
}

// Option 可选配置
type Option func(*Agent)

// WithConfig 设置循环参数
func WithConfig(c Config) Option {
	return func(a *Agent) { a.cfg = c }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New 创建 Agent
func New(backend ChatBackend, reg *registry.Registry, opts ...Option) *Agent {
	a := &Agent{
		backend:  backend,
		registry: reg,
		logger:   log.Nop(),
	}
	for _, o := range opts {
		o(a)
	}
	a.cfg = a.cfg.withDefaults()
	a.invoker = tool.NewInvoker(tool.WithTimeout(a.cfg.ToolTimeout), tool.WithLogger(a.logger))
	return a
}

// Registry 返回工具注册表
func (a *Agent) Registry() *registry.Registry { return a.registry }

// Run 执行一次完整对话并返回最终回答。
// 超过最大轮数返回 ErrInconclusive；超时返回 ErrTimeout；模型不可用返回 ErrUpstreamUnavailable。
func (a *Agent) Run(ctx context.Context, query string) (string, error) {
	ctx, span := tracing.StartRunSpan(ctx, query)
	defer span.End()
	if a.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
		defer cancel()
	}
	start := time.Now()

	answer, turns, err := a.loop(ctx, query)
	outcome := outcomeOf(err)
	metrics.AgentRunsTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warn("agent run 结束", "outcome", outcome, "turns", turns, "duration", time.Since(start), "error", err)
		return "", err
	}
	a.logger.Info("agent run 结束", "outcome", outcome, "turns", turns, "duration", time.Since(start))
	return answer, nil
}

func (a *Agent) loop(ctx context.Context, query string) (string, int, error) {
	input := query
	for turn := 1; turn <= a.cfg.MaxTurns; turn++ {
		reply, err := a.send(ctx, turn, input)
		if err != nil {
			return "", turn, err
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, turn, nil
		}
		results := a.dispatch(ctx, reply.ToolCalls)
		input = tool.RenderNextInput(reply.Content, results)
	}
	return "", a.cfg.MaxTurns, errors.Wrapf(errors.ErrInconclusive, "no final answer after %d turns", a.cfg.MaxTurns)
}

func (a *Agent) send(ctx context.Context, turn int, input string) (*Reply, error) {
	metrics.AgentTurnsTotal.Inc()
	tctx, span := tracing.StartTurnSpan(ctx, turn)
	defer span.End()
	if a.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, a.cfg.TurnTimeout)
		defer cancel()
	}

	reply, err := a.backend.Send(tctx, input)
	if err == nil && reply == nil {
		err = stderrors.New("backend returned empty reply")
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, classify(ctx, tctx, err)
	}
	a.logger.Debug("agent turn", "turn", turn, "tool_calls", len(reply.ToolCalls))
	return reply, nil
}

// classify 将后端错误归类：调用方取消原样返回，超时为 ErrTimeout，其余为 ErrUpstreamUnavailable
func classify(runCtx, turnCtx context.Context, err error) error {
	if stderrors.Is(runCtx.Err(), context.Canceled) {
		return runCtx.Err()
	}
	if runCtx.Err() != nil || stderrors.Is(turnCtx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Join(errors.ErrTimeout, err)
	}
	if errors.Is(err, errors.ErrUpstreamUnavailable) {
		return err
	}
	return errors.Join(errors.ErrUpstreamUnavailable, err)
}

// dispatch 执行一轮内的全部工具调用，结果顺序与请求顺序一致
func (a *Agent) dispatch(ctx context.Context, calls []tool.CallRequest) []tool.Result {
	results := make([]tool.Result, len(calls))
	if !a.cfg.ParallelTools || len(calls) == 1 {
		for i, c := range calls {
			results[i] = a.registry.Dispatch(ctx, a.invoker, c)
		}
		return results
	}
	var g errgroup.Group
	for i, c := range calls {
		g.Go(func() error {
			results[i] = a.registry.Dispatch(ctx, a.invoker, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, errors.ErrInconclusive):
		return "inconclusive"
	case errors.Is(err, errors.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "upstream"
	}
}
