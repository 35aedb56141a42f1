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

// Package ingest 拉取外部日志，写入本地日志文件与向量索引
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"log-agent/internal/logsource"
	"log-agent/internal/storage/checkpoint"
	"log-agent/internal/storage/logfile"
	"log-agent/pkg/log"
	"log-agent/pkg/metrics"
	"log-agent/pkg/tracing"
)

// Report 一次拉取的结果
type Report struct {
	Ingested int    `json:"ingested"`
	FromTS   int64  `json:"from_ts"`
	ToTS     *int64 `json:"to_ts"` // 无新事件时为 nil
}

// Service 日志拉取入库
type Service struct {
	source    logsource.Source
	bookmarks checkpoint.Store
	file      *logfile.File
	indexer   einoindexer.Indexer
	redactor  Redactor
	lookback  time.Duration
	now       func() time.Time
	logger    *log.Logger
	mu        sync.Mutex
}

// Redactor 在写入前改写事件消息
type Redactor interface {
	Redact(text string) string
}

// Option Service 可选项
type Option func(*Service)

// WithLookback 无书签时向前回溯的时长
func WithLookback(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithRedactor 写入文件与索引前对消息脱敏
func WithRedactor(r Redactor) Option {
	return func(s *Service) { s.redactor = r }
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService 创建 Service；indexer 为 nil 时只写日志文件
func NewService(src logsource.Source, bookmarks checkpoint.Store, file *logfile.File, indexer einoindexer.Indexer, opts ...Option) *Service {
	s := &Service{
		source:    src,
		bookmarks: bookmarks,
		file:      file,
		indexer:   indexer,
		lookback:  10 * time.Minute,
		now:       time.Now,
		logger:    log.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PullAndSave 从书签之后拉取事件，追加到日志文件、写入向量索引并推进书签。
// 同一 Service 上的调用串行执行。
func (s *Service) PullAndSave(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := tracing.StartIngestSpan(ctx, s.source.Name())
	defer span.End()

	rep, err := s.pullAndSave(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("日志拉取失败", "source", s.source.Name(), "error", err)
		return rep, err
	}
	span.SetAttributes(attribute.Int("ingest.events", rep.Ingested), attribute.Int64("ingest.from_ts", rep.FromTS))
	s.logger.Info("日志拉取完成", "source", s.source.Name(), "ingested", rep.Ingested, "from_ts", rep.FromTS)
	return rep, nil
}

func (s *Service) pullAndSave(ctx context.Context) (Report, error) {
	last, ok, err := s.bookmarks.Load(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("读取书签失败: %w", err)
	}
	start := s.now().Add(-s.lookback).UnixMilli()
	if ok {
		start = last + 1
	}
	rep := Report{FromTS: start}

	events, err := s.source.Pull(ctx, start)
	if err != nil {
		return rep, err
	}
	if len(events) == 0 {
		return rep, nil
	}

	lines := make([]string, len(events))
	docs := make([]*schema.Document, len(events))
	maxTS := start
	for i, e := range events {
		if s.redactor != nil {
			e.Message = s.redactor.Redact(e.Message)
		}
		lines[i] = FormatLine(e)
		docs[i] = EventToDocument(e, lines[i])
		maxTS = max(maxTS, e.Timestamp)
	}

	if err := s.file.Append(lines); err != nil {
		return rep, fmt.Errorf("写入日志文件失败: %w", err)
	}
	if s.indexer != nil {
		if _, err := s.indexer.Store(ctx, docs); err != nil {
			return rep, fmt.Errorf("写入向量索引失败: %w", err)
		}
	}
	if err := s.bookmarks.Save(ctx, maxTS); err != nil {
		return rep, fmt.Errorf("保存书签失败: %w", err)
	}
	metrics.IngestEventsTotal.Add(float64(len(events)))

	rep.Ingested = len(events)
	if maxTS != start {
		rep.ToTS = &maxTS
	}
	return rep, nil
}
