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

// Package secrets 提供密钥读取抽象；配置中的 "secret://<key>" 引用在启动期解析
package secrets

import (
	"context"
	"fmt"
	"strings"

	"log-agent/pkg/errors"
)

// RefPrefix 配置值中的密钥引用前缀
const RefPrefix = "secret://"

// Store 密钥存储
type Store interface {
	// Get 获取 secret 值，不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string      // vault | env | memory
	Vault    VaultConfig // provider=vault 时使用
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "memory":
		return NewMemoryStore(), nil
	case "env", "":
		return NewEnvStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// IsRef 判断配置值是否为密钥引用
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Resolve 解析 "secret://<key>"；非引用值原样返回
func Resolve(ctx context.Context, s Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	key := strings.TrimPrefix(value, RefPrefix)
	if key == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "empty secret reference")
	}
	v, err := s.Get(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "resolve secret %q", key)
	}
	return v, nil
}
