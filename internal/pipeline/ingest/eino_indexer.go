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

package ingest

import (
	"context"
	"fmt"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"

	"log-agent/internal/storage/vector"
)

// MemoryIndexer 实现 eino indexer.Indexer，写入内置 vector.Store
type MemoryIndexer struct {
	vectorStore       vector.Store
	embedder          einoembed.Embedder
	defaultCollection string
	batchSize         int
}

// MemoryIndexerConfig MemoryIndexer 配置
type MemoryIndexerConfig struct {
	VectorStore       vector.Store
	Embedder          einoembed.Embedder // 可被 indexer.WithEmbedding 覆盖
	DefaultCollection string
	BatchSize         int
}

// NewMemoryIndexer 创建 MemoryIndexer
func NewMemoryIndexer(cfg *MemoryIndexerConfig) (*MemoryIndexer, error) {
	if cfg == nil || cfg.VectorStore == nil {
		return nil, fmt.Errorf("MemoryIndexer 需要 VectorStore")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	collection := cfg.DefaultCollection
	if collection == "" {
		collection = "logs"
	}
	return &MemoryIndexer{
		vectorStore:       cfg.VectorStore,
		embedder:          cfg.Embedder,
		defaultCollection: collection,
		batchSize:         batchSize,
	}, nil
}

// Store 向量化（必要时）并分批写入；索引不存在时按首批向量维度创建
func (m *MemoryIndexer) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := einoindexer.GetCommonOptions(&einoindexer.Options{Embedding: m.embedder}, opts...)
	indexName := m.defaultCollection
	if len(options.SubIndexes) > 0 && options.SubIndexes[0] != "" {
		indexName = options.SubIndexes[0]
	}

	ids := make([]string, 0, len(docs))
	for i := 0; i < len(docs); i += m.batchSize {
		end := min(i+m.batchSize, len(docs))
		batch := make([]*schema.Document, 0, end-i)
		for _, d := range docs[i:end] {
			if d != nil {
				batch = append(batch, d)
			}
		}
		if err := embedMissing(ctx, options.Embedding, batch); err != nil {
			return nil, err
		}
		vecs := make([]*vector.Vector, 0, len(batch))
		for _, doc := range batch {
			vec := doc.DenseVector()
			if len(vec) == 0 {
				return nil, fmt.Errorf("doc %s has no vector and no embedder", doc.ID)
			}
			meta := metaToMapStringString(doc.MetaData)
			meta["content"] = doc.Content
			vecs = append(vecs, &vector.Vector{ID: doc.ID, Values: vec, Metadata: meta})
			ids = append(ids, doc.ID)
		}
		if len(vecs) == 0 {
			continue
		}
		if err := vector.EnsureIndex(ctx, m.vectorStore, indexName, len(vecs[0].Values), "cosine"); err != nil {
			return nil, err
		}
		if err := m.vectorStore.Add(ctx, indexName, vecs); err != nil {
			return nil, fmt.Errorf("vector store add: %w", err)
		}
	}
	return ids, nil
}

// embedMissing 对没有向量的文档批量向量化
func embedMissing(ctx context.Context, emb einoembed.Embedder, docs []*schema.Document) error {
	var (
		texts   []string
		pending []*schema.Document
	)
	for _, d := range docs {
		if len(d.DenseVector()) == 0 && d.Content != "" {
			texts = append(texts, d.Content)
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 || emb == nil {
		return nil
	}
	vecs, err := emb.EmbedStrings(ctx, texts)
	if err != nil {
		return fmt.Errorf("indexer embedding: %w", err)
	}
	if len(vecs) != len(pending) {
		return fmt.Errorf("indexer embedding: got %d vectors for %d texts", len(vecs), len(pending))
	}
	for i, d := range pending {
		d.WithDenseVector(vecs[i])
	}
	return nil
}

func metaToMapStringString(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		switch s := v.(type) {
		case string:
			out[k] = s
		case nil:
		default:
			out[k] = fmt.Sprint(s)
		}
	}
	return out
}
