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

// Package http 日志分析服务的 Hertz HTTP 接口
package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"log-agent/internal/api/http/middleware"
)

// Router 路由装配
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwt        *jwt.HertzJWTMiddleware
}

// NewRouter 创建 Router
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 JWT：注册 /login，并保护会触发拉取或调用 LLM 的路由
func (r *Router) SetJWT(j *jwt.HertzJWTMiddleware) {
	r.jwt = j
}

// Build 创建 Hertz 实例并注册全部路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	h := server.New(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)
	r.Register(h)
	return h
}

// Register 在已有 Hertz 实例上注册路由
func (r *Router) Register(h *server.Hertz) {
	h.Use(r.middleware.Recovery(), r.middleware.AccessLog(), r.middleware.CORS())
	if rl := r.middleware.RateLimit(); rl != nil {
		h.Use(rl)
	}

	h.GET("/", r.handler.Root)
	h.GET("/healthz", r.handler.Healthz)
	h.GET("/metrics", r.handler.Metrics)
	h.GET("/tools", r.handler.Tools)
	h.GET("/errors", r.handler.Errors)

	var guard []app.HandlerFunc
	if r.jwt != nil {
		h.POST("/login", r.jwt.LoginHandler)
		h.GET("/refresh_token", r.jwt.RefreshHandler)
		guard = append(guard, r.jwt.MiddlewareFunc())
	}
	with := func(hf app.HandlerFunc) []app.HandlerFunc {
		return append(append([]app.HandlerFunc{}, guard...), hf)
	}
	h.POST("/refresh", with(r.handler.Refresh)...)
	h.GET("/summary", with(r.handler.Summary)...)
	h.POST("/query", with(r.handler.Query)...)
	h.GET("/health", with(r.handler.Health)...)
	h.POST("/agent", with(r.handler.Agent)...)
}
