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

// Package checkpoint 保存日志拉取书签（已入库的最大事件时间戳，毫秒）
package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"

	"log-agent/pkg/config"
)

// Store 书签存储
type Store interface {
	// Load 读取书签；不存在或内容不可解析时 ok=false
	Load(ctx context.Context) (ts int64, ok bool, err error)
	// Save 覆盖写入书签
	Save(ctx context.Context, ts int64) error
}

// FileStore 单文件书签，内容为十进制毫秒时间戳
type FileStore struct {
	fs   afero.Fs
	path string
}

// NewFileStore 创建文件书签；fs 为 nil 时使用操作系统文件系统
func NewFileStore(fs afero.Fs, path string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, path: path}
}

// Load 实现 Store
func (s *FileStore) Load(ctx context.Context) (int64, bool, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if ok, _ := afero.Exists(s.fs, s.path); !ok {
			return 0, false, nil
		}
		return 0, false, err
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return ts, true, nil
}

// Save 实现 Store；先写临时文件再重命名
func (s *FileStore) Save(ctx context.Context, ts int64) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(strconv.FormatInt(ts, 10)), 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, s.path)
}

// New 根据配置创建书签存储；postgres 时返回的 closer 需在退出时调用
func New(ctx context.Context, cfg *config.Config, fs afero.Fs) (Store, func(), error) {
	switch cfg.Storage.Checkpoint.Type {
	case "", "file":
		return NewFileStore(fs, cfg.CheckpointPath()), func() {}, nil
	case "postgres":
		if cfg.Storage.Checkpoint.DSN == "" {
			return nil, nil, fmt.Errorf("storage.checkpoint.dsn 不能为空")
		}
		pool, err := pgxpool.New(ctx, cfg.Storage.Checkpoint.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("连接 Postgres 失败: %w", err)
		}
		s := NewPgStore(pool, cfg.Source.LogGroup)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("不支持的书签存储类型: %s", cfg.Storage.Checkpoint.Type)
	}
}
