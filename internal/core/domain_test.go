package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
		{Date{Time: time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	if d, err := ParseDate("2025-01-05"); err != nil || d != NewDate(2025, 1, 5) {
		t.Fatalf("unexpected parse: %v %v", d, err)
	}
	for _, bad := range []string{"", "2025-02-30", "05/01/2025", "2025-13-01"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateUnmarshalJSON(t *testing.T) {
	good := map[string]Date{
		`"2025-01-05"`:                NewDate(2025, 1, 5),
		`"2025-01-05T00:00:00Z"`:      NewDate(2025, 1, 5),
		`"2025-01-05T23:30:00-03:00"`: NewDate(2025, 1, 5),
		`""`:                          {},
	}
	for in, want := range good {
		var d Date
		if err := json.Unmarshal([]byte(in), &d); err != nil {
			t.Fatalf("%s: unexpected error %v", in, err)
		}
		if !d.Equal(want) {
			t.Fatalf("%s: got %v, want %v", in, d, want)
		}
	}

	for _, in := range []string{`"2025-01-05garbage"`, `"2025-01-05 10:00"`, `"2025-02-30T00:00:00Z"`, `20250105`} {
		var d Date
		if err := json.Unmarshal([]byte(in), &d); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%s: expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Description: "Mercado",
		Amount:      Money{Cents: 1000},
		Type:        Expense,
		Date:        NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	bads := []struct {
		tx   Transaction
		want error
	}{
		{Transaction{Amount: Money{Cents: 0}, Type: Expense, Date: NewDate(2025, 1, 1)}, ErrInvalidAmount},
		{Transaction{Amount: Money{Cents: -5}, Type: Income, Date: NewDate(2025, 1, 1)}, ErrInvalidAmount},
		{Transaction{Amount: Money{Cents: 5}, Type: "BOTH", Date: NewDate(2025, 1, 1)}, ErrInvalidType},
		{Transaction{Amount: Money{Cents: 5}, Type: Income}, ErrInvalidDate},
		{Transaction{Amount: Money{Cents: 5}, Type: Income, Date: NewDate(2025, 1, 1), Description: string(long)}, ErrDescriptionLong},
	}
	for i, tc := range bads {
		err := tc.tx.Validate()
		if !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected error to wrap ErrValidation", i)
		}
	}
}

func TestParseTransactionType(t *testing.T) {
	cases := map[string]TransactionType{
		"INCOME":  Income,
		"income":  Income,
		"RECEITA": Income,
		"expense": Expense,
		"Despesa": Expense,
	}
	for in, want := range cases {
		got, err := ParseTransactionType(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q err=%v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseTransactionType("BOTH"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestTransactionPatchApply(t *testing.T) {
	base := Transaction{
		ID:          "t1",
		Description: "old",
		Amount:      Money{Cents: 100},
		Type:        Expense,
		Date:        NewDate(2025, 1, 1),
		CategoryID:  "1",
	}
	desc := "  new  "
	cat := ID("2.0")
	got := TransactionPatch{Description: &desc, CategoryID: &cat}.Apply(base)
	if got.Description != "new" {
		t.Fatalf("description not merged: %q", got.Description)
	}
	if got.CategoryID != "2" {
		t.Fatalf("category id not normalized: %q", got.CategoryID)
	}
	if got.Amount != base.Amount || got.Type != base.Type || got.Date != base.Date {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestCategoryInputDefaults(t *testing.T) {
	c := CategoryInput{Name: " Food "}.Category()
	if c.Name != "Food" || c.DefaultType != CategoryBoth || !c.Active {
		t.Fatalf("unexpected category: %+v", c)
	}
	if c.Icon != DefaultCategoryIcon || c.Color != DefaultCategoryColor {
		t.Fatalf("presentation defaults missing: %+v", c)
	}
	if err := (Category{Name: " ", DefaultType: CategoryBoth}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (Category{Name: "x", DefaultType: "NONE"}).Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrInvalidAmount, "validation"},
		{NotFound("transaction", "x"), "not_found"},
		{ErrStorage, "storage"},
		{ErrNetwork, "network"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
