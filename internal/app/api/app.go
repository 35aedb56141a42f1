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

package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"google.golang.org/grpc"

	apigrpc "log-agent/internal/api/grpc"
	"log-agent/internal/api/http"
	"log-agent/internal/api/http/middleware"
	"log-agent/internal/app"
	pkgconfig "log-agent/pkg/config"
	"log-agent/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与可选的 gRPC 服务）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *grpcRun
	otelProvider otelProviderShutdown
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv     *grpc.Server
	lis     net.Listener
	service *apigrpc.Server
}

func (g *grpcRun) GracefulStop() {
	if g.service != nil {
		g.service.Shutdown()
	}
	if g.srv != nil {
		g.srv.GracefulStop()
	}
	if g.lis != nil {
		_ = g.lis.Close()
	}
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	logger := bootstrap.Logger

	var runner http.AgentRunner
	var grpcRunner apigrpc.Runner
	if bootstrap.Agent != nil {
		runner = bootstrap.Agent
		grpcRunner = bootstrap.Agent
	}
	handler := http.NewHandler(bootstrap.Ingest, bootstrap.Query, runner, bootstrap.Registry, logger)

	mwOpts := middleware.Options{Logger: logger}
	if cfg.API.CORS.Enable {
		mwOpts.AllowOrigins = cfg.API.CORS.AllowOrigins
	}
	if cfg.API.Middleware.RateLimit {
		mwOpts.RateLimitRPS = cfg.API.Middleware.RateLimitRPS
	}
	router := http.NewRouter(handler, middleware.NewMiddleware(mwOpts))

	if cfg.API.Middleware.Auth {
		if cfg.API.Middleware.JWTKey == "" {
			return nil, fmt.Errorf("api.middleware.auth 已开启但 jwt_key 为空")
		}
		timeout := pkgconfig.ParseDuration(cfg.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := pkgconfig.ParseDuration(cfg.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Middleware.JWTKey), timeout, maxRefresh, cfg.API.Middleware.LoginToken)
		if err != nil {
			return nil, fmt.Errorf("JWT 初始化失败: %w", err)
		}
		router.SetJWT(jwtAuth)
		logger.Info("JWT 认证已启用")
	}

	appObj := &App{bootstrap: bootstrap, router: router}
	if cfg.API.Grpc.Enable && cfg.API.Grpc.Port > 0 {
		gs, err := startGRPC(apigrpc.NewServer(grpcRunner, bootstrap.Query), cfg.API.Grpc.Port)
		if err != nil {
			logger.Warn("gRPC 服务启动失败", "error", err)
		} else {
			appObj.grpcServer = gs
			logger.Info("gRPC 服务已启动", "port", cfg.API.Grpc.Port)
		}
	}
	return appObj, nil
}

// Run 启动 HTTP 服务并阻塞，addr 如 ":8080"
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 日志级别对齐
	var output io.Writer = os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	opts := []config.Option{server.WithHostPorts(addr)}
	if d := pkgconfig.ParseDuration(cfg.API.Timeout, 0); d > 0 {
		opts = append(opts, server.WithReadTimeout(d))
	}
	var tracerCfg *hertztracing.Config
	if tr := cfg.Monitoring.Tracing; tr.Enable {
		endpoint := tr.ExportEndpoint
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if endpoint != "" {
			popts := []provider.Option{
				provider.WithServiceName(tr.ServiceName),
				provider.WithExportEndpoint(endpoint),
			}
			if tr.Insecure {
				popts = append(popts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(popts...)
			tracerOpt, c := hertztracing.NewServerTracer()
			opts = append(opts, tracerOpt)
			tracerCfg = c
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", tr.ServiceName, "endpoint", endpoint)
		}
	}

	a.hertz = server.New(opts...)
	if tracerCfg != nil {
		a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
	}
	a.router.Register(a.hertz)
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	var err error
	if a.hertz != nil {
		err = a.hertz.Shutdown(ctx)
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	a.bootstrap.Close()
	return err
}

// startGRPC 创建并启动 gRPC 服务（在 goroutine 中 Serve）
func startGRPC(service *apigrpc.Server, port int) (*grpcRun, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer()
	service.Register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	return &grpcRun{srv: srv, lis: lis, service: service}, nil
}
