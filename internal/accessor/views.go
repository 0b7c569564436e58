package accessor

import (
	"context"
	"fmt"
	"sort"

	"zetafin/internal/core"
)

// Aggregate is core.Aggregate over txs using the loaded categories for
// name resolution.
func (a *Accessor) Aggregate(txs []core.Transaction, from, to core.Date, by core.GroupBy) (map[string]core.Money, error) {
	return core.Aggregate(txs, a.Index(), core.Window{From: from, To: to}, by)
}

// Summary aggregates the loaded transactions. Results are memoized per data
// generation, so repeated calls between loads and mutations are free. The
// data is loaded first if nothing has been loaded yet.
//
// Category summaries are ordered by amount descending; day summaries by date.
func (a *Accessor) Summary(ctx context.Context, from, to core.Date, by core.GroupBy) ([]core.CategoryAmount, error) {
	if by == "" {
		by = core.GroupByCategory
	}
	if _, err := core.ParseGroupBy(string(by)); err != nil {
		return nil, err
	}
	if err := a.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	gen := a.generation
	txs, idx := a.txs, a.idx
	a.mu.RUnlock()

	key := fmt.Sprintf("%d|%s|%s|%s", gen, from, to, by)
	if cached, ok := a.summaries.Get(key); ok {
		return append([]core.CategoryAmount(nil), cached...), nil
	}

	sums, err := core.Aggregate(txs, idx, core.Window{From: from, To: to}, by)
	if err != nil {
		return nil, err
	}
	out := core.SortedAmounts(sums)
	if by == core.GroupByDay {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	a.summaries.Set(key, out)
	return append([]core.CategoryAmount(nil), out...), nil
}

// RunningBalance is the balance of the loaded transactions as of asOf.
func (a *Accessor) RunningBalance(asOf core.Date) core.Money {
	return core.RunningBalance(a.Transactions(), asOf)
}

// BalanceSeries is the end-of-day balance for each date with activity in
// [from, to] over the loaded transactions.
func (a *Accessor) BalanceSeries(from, to core.Date) []core.BalancePoint {
	return core.BalanceSeries(a.Transactions(), core.Window{From: from, To: to})
}

// EnsureLoaded runs LoadAll unless data has already been committed.
func (a *Accessor) EnsureLoaded(ctx context.Context) error {
	a.mu.RLock()
	loaded := a.loaded
	a.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := a.LoadAll(ctx)
	return err
}
