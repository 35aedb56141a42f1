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

// Package logfile 管理本地日志文本文件：一行一条已格式化事件，只追加
package logfile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// maxLineSize 单行上限，超长的 CloudWatch 消息不至于中断扫描
const maxLineSize = 1 << 20

// File 追加写、按行读的日志文件
type File struct {
	fs   afero.Fs
	path string
	mu   sync.RWMutex
}

// New 创建 File；fs 为 nil 时使用操作系统文件系统
func New(fs afero.Fs, path string) *File {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &File{fs: fs, path: path}
}

// Path 文件路径
func (f *File) Path() string { return f.path }

// Append 追加多行，每行末尾补换行
func (f *File) Append(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	fh, err := f.fs.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(fh)
	for _, l := range lines {
		if _, err := w.WriteString(strings.TrimRight(l, "\n") + "\n"); err != nil {
			_ = fh.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

// Scan 按顺序遍历非空行；fn 返回 false 时提前结束。文件不存在视为空
func (f *File) Scan(fn func(line string) bool) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fh, err := f.fs.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer fh.Close()
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !fn(line) {
			break
		}
	}
	return sc.Err()
}

// Tail 最后 n 行（按文件顺序）；n<=0 返回全部
func (f *File) Tail(n int) ([]string, error) {
	var ring []string
	err := f.Scan(func(line string) bool {
		ring = append(ring, line)
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
		return true
	})
	return ring, err
}

// Filter 满足 match 的最后 limit 行；limit<=0 返回全部
func (f *File) Filter(match func(string) bool, limit int) ([]string, error) {
	var out []string
	err := f.Scan(func(line string) bool {
		if match(line) {
			out = append(out, line)
			if limit > 0 && len(out) > limit {
				out = out[1:]
			}
		}
		return true
	})
	return out, err
}
