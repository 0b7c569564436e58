package memory

import (
	"context"
	"testing"

	"zetafin/internal/core"
	"zetafin/internal/sheets"
)

var _ sheets.Mirror = (*Store)(nil)

func TestMemoryStoreUpsertAndRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.Upsert(ctx, core.Transaction{ID: "a", Description: "first"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref, err)
	}
	if _, err := s.Upsert(ctx, core.Transaction{ID: "b", Description: "second"}); err != nil {
		t.Fatal(err)
	}

	ref, err = s.Upsert(ctx, core.Transaction{ID: " a ", Description: "edited"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("update should reuse the row: ref=%q err=%v", ref, err)
	}

	if err := s.Remove(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "missing"); err != nil {
		t.Fatalf("removing a missing row should succeed: %v", err)
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].Description != "edited" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	if _, err := New().Upsert(context.Background(), core.Transaction{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx := core.Transaction{ID: "t1", Description: "x"}

	if _, err := sheets.Apply(ctx, s, core.Change{Op: core.OpCreated, Entity: core.EntityTransaction, ID: "t1", Transaction: &tx}); err != nil {
		t.Fatal(err)
	}
	if _, err := sheets.Apply(ctx, s, core.Change{Op: core.OpUpdated, Entity: core.EntityCategory, ID: "c1"}); err != nil {
		t.Fatalf("category changes should be ignored: %v", err)
	}
	if len(s.Rows()) != 1 {
		t.Fatalf("expected one row, got %d", len(s.Rows()))
	}
	if _, err := sheets.Apply(ctx, s, core.Change{Op: core.OpUpdated, Entity: core.EntityTransaction, ID: "t1"}); err == nil {
		t.Fatal("update without payload should fail")
	}
	if _, err := sheets.Apply(ctx, s, core.Change{Op: core.OpDeleted, Entity: core.EntityTransaction, ID: "t1"}); err != nil {
		t.Fatal(err)
	}
	if len(s.Rows()) != 0 {
		t.Fatalf("expected no rows, got %d", len(s.Rows()))
	}
}
