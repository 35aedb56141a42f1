package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"log-agent/pkg/errors"
)

// MemoryStore 内存向量存储实现
type MemoryStore struct {
	indexes map[string]*index
	mu      sync.RWMutex
}

type index struct {
	index   *Index
	vectors map[string]*Vector
	order   []string // 插入顺序，保证同分结果稳定
}

// NewMemoryStore 创建新的内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		indexes: make(map[string]*index),
	}
}

// Create 创建向量索引
func (s *MemoryStore) Create(ctx context.Context, idx *Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[idx.Name]; exists {
		return fmt.Errorf("index with name %s already exists", idx.Name)
	}
	s.indexes[idx.Name] = &index{index: idx, vectors: make(map[string]*Vector)}
	return nil
}

// Add 添加向量；Dimension 为 0 的索引以首个向量的维度为准
func (s *MemoryStore) Add(ctx context.Context, indexName string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return errors.Wrapf(errors.ErrNotFound, "index %s", indexName)
	}
	for _, v := range vectors {
		if idx.index.Dimension == 0 {
			idx.index.Dimension = len(v.Values)
		}
		if len(v.Values) != idx.index.Dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v.Values), idx.index.Dimension)
		}
		if _, seen := idx.vectors[v.ID]; !seen {
			idx.order = append(idx.order, v.ID)
		}
		idx.vectors[v.ID] = v
	}
	return nil
}

// Search 搜索向量
func (s *MemoryStore) Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.indexes[indexName]
	if !exists {
		return nil, errors.Wrapf(errors.ErrNotFound, "index %s", indexName)
	}
	if idx.index.Dimension != 0 && len(query) != idx.index.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.index.Dimension)
	}
	if options == nil {
		options = &SearchOptions{TopK: 10}
	}

	var results []*SearchResult
	for _, id := range idx.order {
		v := idx.vectors[id]
		if !matchFilter(v.Metadata, options.Filter) {
			continue
		}
		score := similarity(query, v.Values, idx.index.Distance)
		if score < options.Threshold {
			continue
		}
		results = append(results, &SearchResult{ID: id, Score: score, Metadata: v.Metadata})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if options.TopK > 0 && len(results) > options.TopK {
		results = results[:options.TopK]
	}
	return results, nil
}

// Count 索引内向量数
func (s *MemoryStore) Count(ctx context.Context, indexName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, exists := s.indexes[indexName]
	if !exists {
		return 0, errors.Wrapf(errors.ErrNotFound, "index %s", indexName)
	}
	return len(idx.vectors), nil
}

// ListIndexes 列出所有索引
func (s *MemoryStore) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indexes := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		indexes = append(indexes, name)
	}
	sort.Strings(indexes)
	return indexes, nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}

func matchFilter(meta, filter map[string]string) bool {
	for key, value := range filter {
		if meta == nil || meta[key] != value {
			return false
		}
	}
	return true
}

func similarity(query, vector []float64, distance string) float64 {
	if distance == "euclidean" {
		return 1.0 / (1.0 + euclideanDistance(query, vector))
	}
	return cosineSimilarity(query, vector)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	dotProduct, normA, normB := 0.0, 0.0, 0.0
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func euclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
