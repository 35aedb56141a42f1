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

// Package middleware HTTP 中间件：CORS、限流、访问日志、JWT
package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"log-agent/pkg/log"
)

// Options 中间件参数
type Options struct {
	AllowOrigins []string // 空表示 "*"
	RateLimitRPS int      // <=0 关闭限流
	Logger       *log.Logger
}

// Middleware 中间件管理器
type Middleware struct {
	origins []string
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewMiddleware 创建中间件管理器
func NewMiddleware(opts Options) *Middleware {
	m := &Middleware{origins: opts.AllowOrigins, logger: opts.Logger}
	if m.logger == nil {
		m.logger = log.Nop()
	}
	if opts.RateLimitRPS > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitRPS)
	}
	return m
}

// CORS 跨域；OPTIONS 预检直接返回 204
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))
		c.Header("Access-Control-Allow-Origin", m.allowOrigin(origin))
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")
		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if len(m.origins) == 0 {
		return "*"
	}
	for _, o := range m.origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return m.origins[0]
}

// RateLimit 全局令牌桶限流；未配置时返回 nil
func (m *Middleware) RateLimit() app.HandlerFunc {
	if m.limiter == nil {
		return nil
	}
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.limiter.Allow() {
			c.AbortWithStatusJSON(consts.StatusTooManyRequests, map[string]string{
				"error": "too many requests",
			})
			return
		}
		c.Next(ctx)
	}
}

// Recovery panic 恢复
func (m *Middleware) Recovery() app.HandlerFunc {
	return recovery.Recovery()
}
