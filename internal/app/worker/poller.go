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
	"os"
	"sync"
	"time"

	"log-agent/internal/pipeline/ingest"
	"log-agent/pkg/log"
)

// Puller 执行一次增量拉取
type Puller interface {
	PullAndSave(ctx context.Context) (ingest.Report, error)
}

// Poller 按固定间隔调用 PullAndSave；启动时立即执行一次
type Poller struct {
	workerID     string
	puller       Puller
	pollInterval time.Duration
	logger       *log.Logger

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewPoller 创建 Poller；pollInterval<=0 时为 1 分钟
func NewPoller(workerID string, puller Puller, pollInterval time.Duration, logger *log.Logger) *Poller {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Poller{
		workerID:     workerID,
		puller:       puller,
		pollInterval: pollInterval,
		logger:       logger.With("worker_id", workerID),
		stopCh:       make(chan struct{}),
	}
}

// Start 启动拉取循环，ctx 取消或 Stop 后退出
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			p.pullOnce(ctx)
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop 停止循环并等待当前拉取结束
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Poller) pullOnce(ctx context.Context) {
	start := time.Now()
	rep, err := p.puller.PullAndSave(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("拉取日志失败", "error", err, "duration", time.Since(start))
		}
		return
	}
	if rep.Ingested > 0 {
		p.logger.Info("拉取日志完成", "ingested", rep.Ingested, "from_ts", rep.FromTS, "duration", time.Since(start))
	} else {
		p.logger.Debug("无新日志", "from_ts", rep.FromTS)
	}
}

// DefaultWorkerID 返回默认 Worker 标识（hostname 或 env）
func DefaultWorkerID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	host, _ := os.Hostname()
	if host != "" {
		return host
	}
	return "worker-unknown"
}
