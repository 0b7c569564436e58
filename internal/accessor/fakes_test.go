package accessor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zetafin/internal/core"
	"zetafin/internal/remote"
)

// fakeRemote is an in-memory remote.Store. listHook, when set, runs before
// ListTransactions returns and can block or fail the call.
type fakeRemote struct {
	mu       sync.Mutex
	txs      []core.Transaction
	cats     []core.Category
	fail     error
	listHook func(ctx context.Context) ([]core.Transaction, error)
}

var _ remote.Store = (*fakeRemote)(nil)

func (f *fakeRemote) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeRemote) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *fakeRemote) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	f.mu.Lock()
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := core.SortByDateDesc(f.txs)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRemote) GetTransaction(ctx context.Context, id core.ID) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.ID.Equal(id) {
			return t, nil
		}
	}
	return core.Transaction{}, core.NotFound("transaction", id)
}

func (f *fakeRemote) ListCategories(ctx context.Context) ([]core.Category, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Category(nil), f.cats...), nil
}

func (f *fakeRemote) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := f.err(); err != nil {
		return core.Transaction{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, t)
	return t, nil
}

func (f *fakeRemote) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := f.err(); err != nil {
		return core.Transaction{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.txs {
		if f.txs[i].ID.Equal(t.ID) {
			f.txs[i] = t
			return t, nil
		}
	}
	return core.Transaction{}, core.NotFound("transaction", t.ID)
}

func (f *fakeRemote) DeleteTransaction(ctx context.Context, id core.ID) error {
	if err := f.err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.txs[:0]
	for _, t := range f.txs {
		if !t.ID.Equal(id) {
			kept = append(kept, t)
		}
	}
	f.txs = kept
	return nil
}

func (f *fakeRemote) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := f.err(); err != nil {
		return core.Category{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cats = append(f.cats, c)
	return c, nil
}

func (f *fakeRemote) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := f.err(); err != nil {
		return core.Category{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.cats {
		if f.cats[i].ID.Equal(c.ID) {
			f.cats[i] = c
			return c, nil
		}
	}
	return core.Category{}, core.NotFound("category", c.ID)
}

func (f *fakeRemote) Ping(ctx context.Context) error { return f.err() }

func (f *fakeRemote) CurrentUser(ctx context.Context) (remote.User, error) {
	return remote.User{ID: "u1", Email: "a@b.c"}, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []core.Change
	fail    error
}

func (p *recordingPublisher) PublishChange(ctx context.Context, c core.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.fail
}

func (p *recordingPublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.changes))
	for i, c := range p.changes {
		out[i] = fmt.Sprintf("%s:%s", c.Entity, c.Op)
	}
	return out
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func sequentialIDs() func() core.ID {
	var mu sync.Mutex
	n := 0
	return func() core.ID {
		mu.Lock()
		defer mu.Unlock()
		n++
		return core.ID(fmt.Sprintf("id-%d", n))
	}
}

func tx(id string, amount string, typ core.TransactionType, date core.Date, cat core.ID) core.Transaction {
	return core.Transaction{
		ID:          core.ID(id),
		Description: "tx " + id,
		Amount:      core.MustMoney(amount),
		Type:        typ,
		Date:        date,
		CategoryID:  cat,
	}
}
