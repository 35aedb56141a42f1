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

package http

import (
	"bytes"
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"log-agent/internal/tool"
	"log-agent/internal/tool/builtin"
	"log-agent/pkg/errors"
	"log-agent/pkg/log"
	"log-agent/pkg/metrics"
)

// AgentRunner 执行一次 Agent 对话
type AgentRunner interface {
	Run(ctx context.Context, query string) (string, error)
}

// ToolLister 列出已注册工具
type ToolLister interface {
	Specs() []tool.Spec
}

// Handler HTTP 处理器
type Handler struct {
	ingester builtin.Ingester
	analyzer builtin.Analyzer
	agent    AgentRunner
	tools    ToolLister
	logger   *log.Logger
}

// NewHandler 创建 Handler；agent 为 nil 时 /agent 返回 503
func NewHandler(ing builtin.Ingester, an builtin.Analyzer, agent AgentRunner, tools ToolLister, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{ingester: ing, analyzer: an, agent: agent, tools: tools, logger: logger}
}

// statusFor 错误到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidArg):
		return consts.StatusBadRequest
	case errors.Is(err, errors.ErrTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return consts.StatusGatewayTimeout
	case errors.Is(err, errors.ErrUpstreamUnavailable):
		return consts.StatusBadGateway
	case stderrors.Is(err, context.Canceled):
		return 499
	default:
		return consts.StatusInternalServerError
	}
}

func (h *Handler) fail(c *app.RequestContext, op string, err error) {
	code := statusFor(err)
	h.logger.Warn("请求失败", "op", op, "status", code, "error", err)
	c.JSON(code, utils.H{"error": err.Error()})
}

// Root GET /
func (h *Handler) Root(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"msg": "Use POST /refresh to pull logs"})
}

// Healthz GET /healthz 存活检查
func (h *Handler) Healthz(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok", "timestamp": time.Now().Unix()})
}

// Refresh POST /refresh
func (h *Handler) Refresh(ctx context.Context, c *app.RequestContext) {
	rep, err := h.ingester.PullAndSave(ctx)
	if err != nil {
		h.fail(c, "refresh", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"ingested": rep.Ingested,
		"from_ts":  rep.FromTS,
		"to_ts":    rep.ToTS,
		"status":   "success",
	})
}

// Summary GET /summary
func (h *Handler) Summary(ctx context.Context, c *app.RequestContext) {
	sum, err := h.analyzer.SummaryLogs(ctx)
	if err != nil {
		h.fail(c, "summary", err)
		return
	}
	c.JSON(consts.StatusOK, sum)
}

type queryRequest struct {
	Q string `json:"q"`
}

// Query POST /query {"q": "..."}
func (h *Handler) Query(ctx context.Context, c *app.RequestContext) {
	var req queryRequest
	if err := c.BindJSON(&req); err != nil || req.Q == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "Missing field 'q'"})
		return
	}
	ans, err := h.analyzer.QueryLogs(ctx, req.Q)
	if err != nil {
		h.fail(c, "query", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"result": ans})
}

// Health GET /health
func (h *Handler) Health(ctx context.Context, c *app.RequestContext) {
	rep, err := h.analyzer.HealthReport(ctx)
	if err != nil {
		h.fail(c, "health", err)
		return
	}
	c.JSON(consts.StatusOK, rep)
}

// Errors GET /errors?limit=N
func (h *Handler) Errors(ctx context.Context, c *app.RequestContext) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(consts.StatusBadRequest, utils.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	res, err := h.analyzer.ErrorLogs(ctx, limit)
	if err != nil {
		h.fail(c, "errors", err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

type agentRequest struct {
	Query string `json:"query"`
}

// Agent POST /agent {"query": "..."}
func (h *Handler) Agent(ctx context.Context, c *app.RequestContext) {
	if h.agent == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "agent not configured"})
		return
	}
	var req agentRequest
	if err := c.BindJSON(&req); err != nil || req.Query == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "Missing field 'query'"})
		return
	}
	answer, err := h.agent.Run(ctx, req.Query)
	switch {
	case err == nil:
		c.JSON(consts.StatusOK, utils.H{"response": answer, "status": "done"})
	case errors.Is(err, errors.ErrInconclusive):
		c.JSON(consts.StatusOK, utils.H{"response": "", "status": "inconclusive", "error": err.Error()})
	default:
		h.fail(c, "agent", err)
	}
}

// Tools GET /tools
func (h *Handler) Tools(ctx context.Context, c *app.RequestContext) {
	var specs []tool.Spec
	if h.tools != nil {
		specs = h.tools.Specs()
	}
	c.JSON(consts.StatusOK, utils.H{"tools": specs})
}

// Metrics GET /metrics
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.fail(c, "metrics", err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
