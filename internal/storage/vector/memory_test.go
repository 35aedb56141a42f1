package vector

import (
	"context"
	"testing"

	"log-agent/pkg/errors"
)

func TestMemoryStore_Create_Add_Search(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	idx := &Index{Name: "idx1", Dimension: 2, Distance: "cosine"}
	if err := s.Create(ctx, idx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	vecs := []*Vector{
		{ID: "v1", Values: []float64{1, 0}},
		{ID: "v2", Values: []float64{0, 1}},
	}
	if err := s.Add(ctx, "idx1", vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := s.Search(ctx, "idx1", []float64{1, 0}, &SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) < 1 {
		t.Fatalf("Search: expected at least 1 result, got %d", len(results))
	}
	if results[0].ID != "v1" {
		t.Errorf("Search: expected v1 first (cosine sim), got %s", results[0].ID)
	}
}

func TestMemoryStore_Create_DuplicateIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	idx := &Index{Name: "x", Dimension: 2}
	_ = s.Create(ctx, idx)
	err := s.Create(ctx, idx)
	if err == nil {
		t.Error("Create duplicate index should error")
	}
}

func TestMemoryStore_Add_IndexNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.Add(ctx, "missing", []*Vector{{ID: "v1", Values: []float64{1}}})
	if err == nil {
		t.Error("Add to missing index should error")
	}
}

func TestMemoryStore_Add_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2})
	err := s.Add(ctx, "i", []*Vector{{ID: "v1", Values: []float64{1, 0, 0}}})
	if err == nil {
		t.Error("Add with wrong dimension should error")
	}
}

func TestMemoryStore_Search_IndexNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Search(ctx, "missing", []float64{1}, nil)
	if err == nil {
		t.Error("Search missing index should error")
	}
}

func TestEnsureIndex_InfersDimension(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := EnsureIndex(ctx, s, "logs", 0, ""); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if err := EnsureIndex(ctx, s, "logs", 0, ""); err != nil {
		t.Fatalf("EnsureIndex twice: %v", err)
	}
	if err := s.Add(ctx, "logs", []*Vector{{ID: "a", Values: []float64{1, 0, 0}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, "logs", []*Vector{{ID: "b", Values: []float64{1, 0}}}); err == nil {
		t.Error("Add with different dimension should error")
	}
	n, err := s.Count(ctx, "logs")
	if err != nil || n != 1 {
		t.Errorf("Count: n=%d err=%v", n, err)
	}
}

func TestMemoryStore_FilterThresholdAndOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2})
	_ = s.Add(ctx, "i", []*Vector{
		{ID: "a", Values: []float64{1, 0}, Metadata: map[string]string{"log_stream": "s1"}},
		{ID: "b", Values: []float64{1, 0.1}, Metadata: map[string]string{"log_stream": "s2"}},
		{ID: "c", Values: []float64{0, 1}, Metadata: map[string]string{"log_stream": "s1"}},
	})
	res, err := s.Search(ctx, "i", []float64{1, 0}, &SearchOptions{TopK: 10, Filter: map[string]string{"log_stream": "s1"}, Threshold: 0.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].ID != "a" {
		t.Errorf("filtered search: %+v", res)
	}

	_ = s.Add(ctx, "i", []*Vector{{ID: "a", Values: []float64{0, 1}}})
	n, _ := s.Count(ctx, "i")
	if n != 3 {
		t.Errorf("overwrite should keep count 3, got %d", n)
	}
}

func TestMemoryStore_Count_IndexNotFound(t *testing.T) {
	_, err := NewMemoryStore().Count(context.Background(), "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Count missing: %v", err)
	}
}
