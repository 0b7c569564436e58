package accessor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"zetafin/internal/core"
	"zetafin/internal/kvstore"
	"zetafin/internal/log"
)

// LoadAll fetches transactions and categories from the active store and
// commits them to memory.
//
// Every call takes a sequence number; a result only replaces the cached
// data when it is newer than the last commit, so the last call to resolve
// wins and late stale results are dropped. The caller always gets its own
// result back. When ctx is done before the fetch completes the result is
// discarded and ctx.Err() returned.
//
// A network failure leaves previously loaded data visible and marks the
// accessor stale until the next successful load.
func (a *Accessor) LoadAll(ctx context.Context) (Snapshot, error) {
	seq := a.issued.Add(1)

	var (
		txs  []core.Transaction
		cats []core.Category
		err  error
	)
	switch a.cfg.Mode {
	case ModeRemote:
		txs, cats, err = a.fetchRemote(ctx)
	default:
		txs, cats = a.fetchLocal()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		a.logger.DebugContext(ctx, "Load result discarded", log.FieldSeq, seq, log.FieldError, ctxErr)
		return Snapshot{}, ctxErr
	}
	if err != nil {
		if !a.markFailed(seq, err) {
			a.logger.DebugContext(ctx, "Superseded load failed", log.FieldSeq, seq, log.FieldError, err)
			return Snapshot{}, err
		}
		a.logger.WarnContext(ctx, "Load failed", log.FieldSeq, seq, log.FieldError, err, log.FieldStale, a.Status().Stale)
		return Snapshot{}, err
	}

	txs = prepareTransactions(txs, a.cfg.Limit)
	cats = prepareCategories(cats)

	if !a.commit(seq, txs, cats) {
		a.logger.DebugContext(ctx, "Older load result not committed", log.FieldSeq, seq)
	}
	return Snapshot{
		Transactions: append([]core.Transaction(nil), txs...),
		Categories:   append([]core.Category(nil), cats...),
		Seq:          seq,
	}, nil
}

func (a *Accessor) fetchRemote(ctx context.Context) ([]core.Transaction, []core.Category, error) {
	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = a.remote.ListTransactions(gctx, a.cfg.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = a.remote.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("load remote data: %w", err)
	}
	return txs, cats, nil
}

func (a *Accessor) fetchLocal() ([]core.Transaction, []core.Category) {
	txs := kvstore.LoadCollection[core.Transaction](a.local, kvstore.KeyTransactions, a.logger)
	cats := kvstore.LoadCollection[core.Category](a.local, kvstore.KeyCategories, a.logger)
	return txs, cats
}

// markFailed records a failed load. Network failures on top of loaded data
// make it stale. A failure of a load already superseded by a newer commit is
// ignored.
func (a *Accessor) markFailed(seq uint64, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq <= a.committed {
		return false
	}
	a.lastErr = err
	if a.loaded && errors.Is(err, core.ErrNetwork) {
		a.stale = true
	}
	return true
}

// prepareTransactions normalizes ids, orders newest first and truncates.
func prepareTransactions(txs []core.Transaction, limit int) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	for i, t := range txs {
		out[i] = t.Normalize()
	}
	out = core.SortByDateDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func prepareCategories(cats []core.Category) []core.Category {
	out := make([]core.Category, len(cats))
	for i, c := range cats {
		c.ID = c.ID.Normalize()
		out[i] = c
	}
	return out
}
