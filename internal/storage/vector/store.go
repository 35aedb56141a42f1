package vector

import (
	"fmt"

	"log-agent/pkg/config"
)

// NewStore 根据配置创建向量存储；redis 后端由 einoext 直接使用 eino-ext 组件，不经过 Store
func NewStore(cfg config.VectorConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory", "redis":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", cfg.Type)
	}
}
