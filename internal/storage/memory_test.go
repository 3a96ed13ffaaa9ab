package storage

import (
	"context"
	"testing"
)

func TestUpsertIsIdempotentOnConflictKey(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	if err := m.Upsert(ctx, "agents", Row{"id": "a1", "status": "running"}, []string{"id"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := m.Upsert(ctx, "agents", Row{"id": "a1", "status": "paused"}, []string{"id"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	rows := m.Rows("agents")
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row after idempotent upsert, got %d", len(rows))
	}
	if rows[0]["status"] != "paused" {
		t.Errorf("expected merged status 'paused', got %v", rows[0]["status"])
	}
}

func TestGetFiltersAndProjectsColumns(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	_ = m.Insert(ctx, "books", Row{"id": "b1", "status": "active"})
	_ = m.Insert(ctx, "books", Row{"id": "b2", "status": "frozen"})

	rows, err := m.Get(ctx, "books", Filter{"id": "b1"}, []string{"status"})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["status"] != "active" {
		t.Errorf("expected status active, got %v", rows[0]["status"])
	}
	if _, ok := rows[0]["id"]; ok {
		t.Error("expected projection to exclude unselected columns")
	}
}

func TestPatchFailsWhenNoRowMatches(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	err := m.Patch(ctx, "positions", Filter{"book_id": "nonexistent"}, Row{"size": 1.0})
	if err == nil {
		t.Fatal("expected error patching a row that does not exist")
	}
}

func TestSimulatedUnreachableStore(t *testing.T) {
	m := NewMemoryAdapter()
	m.FailGet["global_settings"] = true
	ctx := context.Background()

	_, err := m.Get(ctx, "global_settings", nil, nil)
	if err == nil {
		t.Fatal("expected PersistenceError for simulated unreachable store")
	}
	if _, ok := err.(*PersistenceError); !ok {
		t.Errorf("expected *PersistenceError, got %T", err)
	}
}
