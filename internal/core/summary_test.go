package core

import (
	"errors"
	"testing"
)

func tx(id string, typ TransactionType, cents int64, date Date, cat ID) Transaction {
	return Transaction{ID: ID(id), Type: typ, Amount: Money{Cents: cents}, Date: date, CategoryID: cat}
}

func TestRunningBalance(t *testing.T) {
	txs := []Transaction{
		tx("a", Income, 50000, NewDate(2025, 1, 1), ""),
		tx("b", Expense, 20000, NewDate(2025, 1, 3), ""),
		tx("c", Expense, 10000, NewDate(2025, 1, 3), ""),
	}
	if got := RunningBalance(txs, NewDate(2025, 1, 2)); got.Cents != 50000 {
		t.Fatalf("balance on 2025-01-02 = %v, want 500.00", got)
	}
	if got := RunningBalance(txs, NewDate(2025, 1, 3)); got.Cents != 20000 {
		t.Fatalf("balance on 2025-01-03 = %v, want 200.00", got)
	}
	if got := RunningBalance(txs, NewDate(2024, 12, 31)); got.Cents != 0 {
		t.Fatalf("balance before first tx = %v, want 0", got)
	}
}

func TestBalanceSeries(t *testing.T) {
	txs := []Transaction{
		tx("b", Expense, 20000, NewDate(2025, 1, 3), ""),
		tx("a", Income, 50000, NewDate(2025, 1, 1), ""),
		tx("c", Expense, 10000, NewDate(2025, 1, 3), ""),
		tx("d", Income, 1000, NewDate(2025, 2, 1), ""),
	}
	got := BalanceSeries(txs, Window{From: NewDate(2025, 1, 2), To: NewDate(2025, 1, 31)})
	if len(got) != 1 {
		t.Fatalf("expected one point, got %+v", got)
	}
	if got[0].Date != NewDate(2025, 1, 3) || got[0].Balance.Cents != 20000 {
		t.Fatalf("unexpected point: %+v", got[0])
	}

	all := BalanceSeries(txs, Window{})
	want := []int64{50000, 20000, 21000}
	if len(all) != len(want) {
		t.Fatalf("expected %d points, got %+v", len(want), all)
	}
	for i, w := range want {
		if all[i].Balance.Cents != w {
			t.Fatalf("point %d: got %d, want %d", i, all[i].Balance.Cents, w)
		}
	}
}

func TestAggregateByCategory(t *testing.T) {
	idx := IndexCategories([]Category{{ID: "1", Name: "Food"}})
	txs := []Transaction{
		tx("t1", Expense, 25050, NewDate(2025, 1, 5), "1"),
	}
	got, err := Aggregate(txs, idx, Window{From: NewDate(2025, 1, 1), To: NewDate(2025, 1, 31)}, GroupByCategory)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(got) != 1 || got["Food"] != MustMoney("250.50") {
		t.Fatalf("unexpected aggregate: %+v", got)
	}
}

func TestAggregateFallsBackToOutros(t *testing.T) {
	idx := IndexCategories([]Category{{ID: "1", Name: "Food"}})
	txs := []Transaction{
		tx("t1", Expense, 100, NewDate(2025, 1, 5), "1"),
		tx("t2", Expense, 200, NewDate(2025, 1, 5), "99"),
		tx("t3", Expense, 300, NewDate(2025, 1, 5), ""),
		tx("t4", Income, 999, NewDate(2025, 1, 5), "1"),
		tx("t5", Expense, 400, NewDate(2025, 3, 5), "1"),
	}
	got, err := Aggregate(txs, idx, Window{To: NewDate(2025, 1, 31)}, GroupByCategory)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got["Food"].Cents != 100 || got[DefaultCategoryName].Cents != 500 {
		t.Fatalf("unexpected aggregate: %+v", got)
	}
}

func TestAggregateByDay(t *testing.T) {
	txs := []Transaction{
		tx("a", Income, 50000, NewDate(2025, 1, 1), ""),
		tx("b", Expense, 20000, NewDate(2025, 1, 3), ""),
		tx("c", Expense, 10000, NewDate(2025, 1, 3), ""),
	}
	got, err := Aggregate(txs, nil, Window{}, GroupByDay)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got["2025-01-01"].Cents != 50000 || got["2025-01-03"].Cents != -30000 {
		t.Fatalf("unexpected aggregate: %+v", got)
	}
	if _, err := Aggregate(txs, nil, Window{}, "month"); !errors.Is(err, ErrInvalidGroupBy) {
		t.Fatalf("expected ErrInvalidGroupBy, got %v", err)
	}
}

func TestCategoryIndexNormalizesIDs(t *testing.T) {
	idx := IndexCategories([]Category{{ID: "7", Name: "Casa"}, {ID: "abc", Name: "Lazer"}})
	for _, ref := range []ID{"7", "07", "7.0", " 7 "} {
		c, ok := idx.Lookup(ref)
		if !ok || c.Name != "Casa" {
			t.Fatalf("lookup %q failed: %+v %v", ref, c, ok)
		}
	}
	if _, ok := idx.Lookup(""); ok {
		t.Fatalf("empty reference must be absent")
	}
	l := idx.Label("missing")
	if !l.Uncategorized || l.Name != "Outros" || l.Icon != "📝" {
		t.Fatalf("unexpected fallback label: %+v", l)
	}
}

func TestSortedAmounts(t *testing.T) {
	got := SortedAmounts(map[string]Money{"b": {Cents: 5}, "a": {Cents: 5}, "c": {Cents: 10}})
	if got[0].Name != "c" || got[1].Name != "a" || got[2].Name != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
}
