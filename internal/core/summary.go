package core

import (
	"sort"
)

// GroupBy selects the bucket key of an aggregation.
type GroupBy string

const (
	GroupByCategory GroupBy = "category"
	GroupByDay      GroupBy = "day"
)

// ParseGroupBy accepts "category" and "day"; empty means category.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case "", GroupByCategory:
		return GroupByCategory, nil
	case GroupByDay:
		return GroupByDay, nil
	default:
		return "", ErrInvalidGroupBy
	}
}

// Window is an inclusive date range. A zero bound is open.
type Window struct {
	From Date
	To   Date
}

// Contains reports whether d falls inside w.
func (w Window) Contains(d Date) bool {
	if !w.From.IsZero() && d.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && d.After(w.To) {
		return false
	}
	return true
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// BalancePoint is the running balance at the end of a day.
type BalancePoint struct {
	Date    Date  `json:"date"`
	Balance Money `json:"balance"`
}

// Aggregate sums the transactions inside w per bucket.
//
// By category, expense amounts are summed as positive magnitudes under the
// category name; income is ignored and uncategorized or dangling references
// land in DefaultCategoryName. By day, each transaction contributes its signed
// amount to its YYYY-MM-DD bucket.
func Aggregate(txs []Transaction, idx CategoryIndex, w Window, by GroupBy) (map[string]Money, error) {
	out := make(map[string]Money)
	switch by {
	case GroupByCategory:
		for _, t := range txs {
			if t.Type != Expense || !w.Contains(t.Date) {
				continue
			}
			name := idx.Label(t.CategoryID).Name
			out[name] = out[name].Add(t.Amount)
		}
	case GroupByDay:
		for _, t := range txs {
			if !w.Contains(t.Date) {
				continue
			}
			key := t.Date.String()
			out[key] = out[key].Add(t.Signed())
		}
	default:
		return nil, ErrInvalidGroupBy
	}
	return out, nil
}

// SortedAmounts flattens an aggregation into a slice ordered by amount
// descending, then name.
func SortedAmounts(m map[string]Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amt := range m {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RunningBalance is the sum of the signed contributions of every transaction
// dated on or before asOf.
func RunningBalance(txs []Transaction, asOf Date) Money {
	var total Money
	for _, t := range txs {
		if !t.Date.After(asOf) {
			total = total.Add(t.Signed())
		}
	}
	return total
}

// BalanceSeries returns one point per distinct transaction date inside w, in
// date order. Transactions before w.From seed the opening balance, and all
// transactions sharing a date apply before the next date's point.
func BalanceSeries(txs []Transaction, w Window) []BalancePoint {
	ordered := SortByDate(txs)
	var (
		out     []BalancePoint
		balance Money
	)
	for i := 0; i < len(ordered); {
		day := ordered[i].Date
		for i < len(ordered) && ordered[i].Date.Equal(day) {
			balance = balance.Add(ordered[i].Signed())
			i++
		}
		if !w.To.IsZero() && day.After(w.To) {
			break
		}
		if w.Contains(day) {
			out = append(out, BalancePoint{Date: day, Balance: balance})
		}
	}
	return out
}

// SortByDate returns a copy of txs in ascending date order, keeping
// insertion order for equal dates.
func SortByDate(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SortByDateDesc returns a copy of txs, most recent first, keeping insertion
// order for equal dates.
func SortByDateDesc(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
