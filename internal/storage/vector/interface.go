package vector

import (
	"context"
)

// Store 向量存储接口
type Store interface {
	// Create 创建向量索引
	Create(ctx context.Context, index *Index) error
	// Add 添加向量；同 ID 覆盖
	Add(ctx context.Context, indexName string, vectors []*Vector) error
	// Search 搜索向量
	Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// Count 索引内向量数
	Count(ctx context.Context, indexName string) (int, error)
	// ListIndexes 列出所有索引
	ListIndexes(ctx context.Context) ([]string, error)
	// Close 关闭存储连接
	Close() error
}

// Index 向量索引
type Index struct {
	Name      string `json:"name"`      // 索引名称
	Dimension int    `json:"dimension"` // 向量维度
	Distance  string `json:"distance"`  // 距离度量方式：cosine | euclidean
}

// Vector 向量数据
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"` // content 存原文，其余为检索过滤字段
}

// SearchOptions 搜索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Filter    map[string]string `json:"filter"`
	Threshold float64           `json:"threshold"`
}

// SearchResult 搜索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}
