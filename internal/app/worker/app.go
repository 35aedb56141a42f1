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

package worker

import (
	"context"
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"log-agent/internal/app"
	"log-agent/pkg/config"
	"log-agent/pkg/tracing"
)

// App Worker 应用：定时从日志来源增量拉取并写入日志文件与向量索引
type App struct {
	bootstrap *app.Bootstrap
	poller    *Poller
	tracer    *sdktrace.TracerProvider
	cancel    context.CancelFunc
}

// NewApp 创建 Worker 应用
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	a := &App{bootstrap: bootstrap}

	if tr := cfg.Monitoring.Tracing; tr.Enable {
		endpoint := tr.ExportEndpoint
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if endpoint != "" {
			tp, err := tracing.InitTracer(tracing.OTelConfig{
				ServiceName:    tr.ServiceName + "-worker",
				ExportEndpoint: endpoint,
				Insecure:       tr.Insecure,
			})
			if err != nil {
				return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
			}
			a.tracer = tp
		}
	}

	interval := config.ParseDuration(cfg.Worker.PollInterval, 0)
	a.poller = NewPoller(DefaultWorkerID(), bootstrap.Ingest, interval, bootstrap.Logger)
	return a, nil
}

// Start 启动拉取循环
func (a *App) Start() error {
	a.bootstrap.Logger.Info("启动 worker 应用", "poll_interval", a.poller.pollInterval)
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.poller.Start(ctx)
	return nil
}

// Shutdown 停止拉取并释放资源
func (a *App) Shutdown(ctx context.Context) error {
	a.bootstrap.Logger.Info("关闭 worker 应用")
	if a.cancel != nil {
		a.cancel()
	}
	a.poller.Stop()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.bootstrap.Logger.Error("关闭 tracer 失败", "error", err)
		}
	}
	a.bootstrap.Close()
	a.bootstrap.Logger.Info("worker 应用关闭成功")
	return nil
}
