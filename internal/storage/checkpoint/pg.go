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

package checkpoint

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema log_bookmarks 表，每个日志来源一行
const Schema = `CREATE TABLE IF NOT EXISTS log_bookmarks (
  source     TEXT PRIMARY KEY,
  last_ts    BIGINT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DB PgStore 需要的最小连接接口（*pgxpool.Pool 满足）
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore PostgreSQL 书签，多个 API/Worker 进程共享
type PgStore struct {
	db     DB
	source string
}

// NewPgStore 创建 PgStore；source 一般为 CloudWatch 日志组名
func NewPgStore(db DB, source string) *PgStore {
	if source == "" {
		source = "default"
	}
	return &PgStore{db: db, source: source}
}

// EnsureSchema 建表（幂等）
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// Load 实现 Store
func (s *PgStore) Load(ctx context.Context) (int64, bool, error) {
	var ts int64
	err := s.db.QueryRow(ctx, `SELECT last_ts FROM log_bookmarks WHERE source = $1`, s.source).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// Save 实现 Store
func (s *PgStore) Save(ctx context.Context, ts int64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO log_bookmarks (source, last_ts, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (source) DO UPDATE SET last_ts = EXCLUDED.last_ts, updated_at = now()`,
		s.source, ts,
	)
	return err
}
