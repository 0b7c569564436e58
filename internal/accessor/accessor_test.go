package accessor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zetafin/internal/core"
	"zetafin/internal/kvstore"
	"zetafin/internal/remote"
)

func newLocal(t *testing.T, store kvstore.Store, limit int, pub ChangePublisher) *Accessor {
	t.Helper()
	if store == nil {
		store = kvstore.NewMemory(0)
	}
	a, err := New(Config{Mode: ModeLocal, Limit: limit}, Deps{
		Local:     store,
		Publisher: pub,
		Clock:     fixedClock(),
		IDs:       sequentialIDs(),
	})
	require.NoError(t, err)
	return a
}

func newRemote(t *testing.T, r *fakeRemote, sess *remote.Session) *Accessor {
	t.Helper()
	a, err := New(Config{Mode: ModeRemote, Limit: 50}, Deps{
		Local:   kvstore.NewMemory(0),
		Remote:  r,
		Session: sess,
		Clock:   fixedClock(),
		IDs:     sequentialIDs(),
	})
	require.NoError(t, err)
	return a
}

func TestNewRequiresStores(t *testing.T) {
	_, err := New(Config{Mode: ModeRemote}, Deps{Local: kvstore.NewMemory(0)})
	assert.Error(t, err)
	_, err = New(Config{Mode: ModeLocal}, Deps{})
	assert.Error(t, err)
	_, err = New(Config{Mode: "weird"}, Deps{Local: kvstore.NewMemory(0)})
	assert.Error(t, err)
}

func TestLocalCreateThenLoad(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(0)
	a := newLocal(t, store, 0, nil)

	cat, err := a.CreateCategory(ctx, core.CategoryInput{Name: "Food", DefaultType: core.CategoryExpense})
	require.NoError(t, err)

	created, err := a.CreateTransaction(ctx, core.TransactionInput{
		Description: "Lunch",
		Amount:      core.MustMoney("25.50"),
		Type:        core.Expense,
		Date:        core.NewDate(2024, 5, 30),
		CategoryID:  cat.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ID("id-2"), created.ID)
	assert.Equal(t, fixedClock()(), created.CreatedAt)

	// A fresh accessor over the same store sees the write.
	b := newLocal(t, store, 0, nil)
	snap, err := b.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, created.ID, snap.Transactions[0].ID)
	assert.Equal(t, "Food", b.CategoryLabel(created.CategoryID).Name)
}

func TestCreateTransactionValidation(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(0)
	a := newLocal(t, store, 0, nil)

	cases := []struct {
		name string
		in   core.TransactionInput
		want error
	}{
		{"zero amount", core.TransactionInput{Type: core.Income, Date: core.NewDate(2024, 1, 1)}, core.ErrInvalidAmount},
		{"bad type", core.TransactionInput{Amount: core.MustMoney("1"), Type: "GIFT", Date: core.NewDate(2024, 1, 1)}, core.ErrInvalidType},
		{"missing date", core.TransactionInput{Amount: core.MustMoney("1"), Type: core.Income}, core.ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.CreateTransaction(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
	_, ok, _ := store.Get(kvstore.KeyTransactions)
	assert.False(t, ok, "invalid input must not be persisted")
}

func TestLocalUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	a := newLocal(t, nil, 0, nil)

	created, err := a.CreateTransaction(ctx, core.TransactionInput{
		Description: "Rent", Amount: core.MustMoney("1000"), Type: core.Expense, Date: core.NewDate(2024, 5, 1),
	})
	require.NoError(t, err)

	newAmount := core.MustMoney("1200")
	updated, err := a.UpdateTransaction(ctx, created.ID, core.TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)
	assert.Equal(t, newAmount, updated.Amount)
	assert.Equal(t, "Rent", updated.Description)

	zero := core.Money{}
	_, err = a.UpdateTransaction(ctx, created.ID, core.TransactionPatch{Amount: &zero})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = a.UpdateTransaction(ctx, "missing", core.TransactionPatch{Amount: &newAmount})
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, a.DeleteTransaction(ctx, created.ID))
	require.NoError(t, a.DeleteTransaction(ctx, created.ID), "delete is idempotent")
	assert.Empty(t, a.Transactions())
}

func TestLocalLoadSortsAndTruncates(t *testing.T) {
	store := kvstore.NewMemory(0)
	require.NoError(t, kvstore.SaveCollection(store, kvstore.KeyTransactions, []core.Transaction{
		tx("a", "1", core.Income, core.NewDate(2024, 1, 1), ""),
		tx("b", "1", core.Income, core.NewDate(2024, 3, 1), ""),
		tx("c", "1", core.Income, core.NewDate(2024, 2, 1), ""),
		tx("d", "1", core.Income, core.NewDate(2024, 3, 1), ""),
	}))
	a := newLocal(t, store, 3, nil)

	snap, err := a.LoadAll(context.Background())
	require.NoError(t, err)
	var ids []core.ID
	for _, x := range snap.Transactions {
		ids = append(ids, x.ID)
	}
	assert.Equal(t, []core.ID{"b", "d", "c"}, ids)
}

func TestLocalLoadToleratesCorruption(t *testing.T) {
	store := kvstore.NewMemory(0)
	require.NoError(t, store.Set(kvstore.KeyTransactions, "{broken"))
	require.NoError(t, store.Set(kvstore.KeyCategories, `[{"id":1,"name":"Food"}]`))
	a := newLocal(t, store, 0, nil)

	snap, err := a.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Transactions)
	require.Len(t, snap.Categories, 1)

	c, ok := a.GetCategory("01")
	require.True(t, ok, "numeric and string ids must match after normalization")
	assert.Equal(t, "Food", c.Name)
}

func TestCategoryLookupFallbacks(t *testing.T) {
	store := kvstore.NewMemory(0)
	require.NoError(t, kvstore.SaveCollection(store, kvstore.KeyCategories, []core.Category{{ID: "7", Name: "Salário", Icon: "💰"}}))
	a := newLocal(t, store, 0, nil)
	_, err := a.LoadAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Salário", a.CategoryLabel("7.0").Name)
	assert.Equal(t, core.DefaultCategoryName, a.CategoryLabel("").Name)
	dangling := a.CategoryLabel("999")
	assert.Equal(t, core.DefaultCategoryName, dangling.Name)
	assert.Equal(t, core.DefaultCategoryIcon, dangling.Icon)
	assert.True(t, dangling.Uncategorized)
}

func TestDeleteCategoryIsSoft(t *testing.T) {
	ctx := context.Background()
	a := newLocal(t, nil, 0, nil)

	cat, err := a.CreateCategory(ctx, core.CategoryInput{Name: "Travel"})
	require.NoError(t, err)
	created, err := a.CreateTransaction(ctx, core.TransactionInput{
		Amount: core.MustMoney("300"), Type: core.Expense, Date: core.NewDate(2024, 4, 1), CategoryID: cat.ID,
	})
	require.NoError(t, err)

	require.NoError(t, a.DeleteCategory(ctx, cat.ID))
	require.NoError(t, a.DeleteCategory(ctx, cat.ID))
	require.NoError(t, a.DeleteCategory(ctx, "never-existed"))

	got, ok := a.GetCategory(cat.ID)
	require.True(t, ok)
	assert.False(t, got.Active)
	assert.Equal(t, "Travel", a.CategoryLabel(created.CategoryID).Name)
}

func TestCreateCategoryValidation(t *testing.T) {
	a := newLocal(t, nil, 0, nil)
	_, err := a.CreateCategory(context.Background(), core.CategoryInput{Name: "  "})
	assert.ErrorIs(t, err, core.ErrEmptyName)
	_, err = a.CreateCategory(context.Background(), core.CategoryInput{Name: "X", DefaultType: "SOMETIMES"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestQuotaExceededSurfacesAsStorageError(t *testing.T) {
	a := newLocal(t, kvstore.NewMemory(64), 0, nil)
	_, err := a.CreateTransaction(context.Background(), core.TransactionInput{
		Description: "this description makes the serialized collection exceed the tiny quota",
		Amount:      core.MustMoney("10"), Type: core.Expense, Date: core.NewDate(2024, 1, 1),
	})
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, kvstore.ErrQuotaExceeded)
}

// failingGetStore fails every Get once failGet is set.
type failingGetStore struct {
	*kvstore.Memory
	failGet bool
}

func (s *failingGetStore) Get(key string) (string, bool, error) {
	if s.failGet {
		return "", false, errors.New("disk I/O error")
	}
	return s.Memory.Get(key)
}

func TestLocalMutationsAbortOnReadFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingGetStore{Memory: kvstore.NewMemory(0)}
	a := newLocal(t, store, 0, nil)

	cat, err := a.CreateCategory(ctx, core.CategoryInput{Name: "Food"})
	require.NoError(t, err)
	var ids []core.ID
	for i := 1; i <= 3; i++ {
		created, err := a.CreateTransaction(ctx, core.TransactionInput{
			Amount: core.MustMoney("10"), Type: core.Expense, Date: core.NewDate(2024, 1, i),
		})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	store.failGet = true
	_, err = a.CreateTransaction(ctx, core.TransactionInput{Amount: core.MustMoney("5"), Type: core.Income, Date: core.NewDate(2024, 1, 9)})
	assert.ErrorIs(t, err, core.ErrStorage)
	desc := "x"
	_, err = a.UpdateTransaction(ctx, ids[0], core.TransactionPatch{Description: &desc})
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, a.DeleteTransaction(ctx, ids[1]), core.ErrStorage)
	_, err = a.CreateCategory(ctx, core.CategoryInput{Name: "Rent"})
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, a.DeleteCategory(ctx, cat.ID), core.ErrStorage)

	store.failGet = false
	txs, err := kvstore.ReadCollection[core.Transaction](store, kvstore.KeyTransactions)
	require.NoError(t, err)
	assert.Len(t, txs, 3, "stored collection must be untouched")
	cats, err := kvstore.ReadCollection[core.Category](store, kvstore.KeyCategories)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.True(t, cats[0].Active)
}

func TestLocalMutationRefusesToOverwriteCorruptCollection(t *testing.T) {
	store := kvstore.NewMemory(0)
	require.NoError(t, store.Set(kvstore.KeyTransactions, "{broken"))
	a := newLocal(t, store, 0, nil)

	_, err := a.CreateTransaction(context.Background(), core.TransactionInput{Amount: core.MustMoney("1"), Type: core.Income, Date: core.NewDate(2024, 1, 1)})
	assert.ErrorIs(t, err, core.ErrStorage)
	raw, _, _ := store.Get(kvstore.KeyTransactions)
	assert.Equal(t, "{broken", raw)
}

func TestSummaryAndBalance(t *testing.T) {
	store := kvstore.NewMemory(0)
	require.NoError(t, kvstore.SaveCollection(store, kvstore.KeyCategories, []core.Category{{ID: "1", Name: "Food"}}))
	require.NoError(t, kvstore.SaveCollection(store, kvstore.KeyTransactions, []core.Transaction{
		tx("t1", "500", core.Income, core.NewDate(2024, 1, 1), ""),
		tx("t2", "200", core.Expense, core.NewDate(2024, 1, 2), "1"),
		tx("t3", "50.50", core.Expense, core.NewDate(2024, 1, 2), "1"),
		tx("t4", "10", core.Expense, core.NewDate(2024, 1, 3), "404"),
	}))
	a := newLocal(t, store, 0, nil)
	ctx := context.Background()

	sum, err := a.Summary(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31), core.GroupByCategory)
	require.NoError(t, err)
	assert.Equal(t, []core.CategoryAmount{
		{Name: "Food", Amount: core.MustMoney("250.50")},
		{Name: core.DefaultCategoryName, Amount: core.MustMoney("10")},
	}, sum)

	days, err := a.Summary(ctx, core.Date{}, core.Date{}, core.GroupByDay)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-01-01", days[0].Name)
	assert.Equal(t, core.MustMoney("-250.50"), days[1].Amount)

	_, err = a.Summary(ctx, core.Date{}, core.Date{}, "week")
	assert.ErrorIs(t, err, core.ErrValidation)

	assert.Equal(t, core.MustMoney("249.50"), a.RunningBalance(core.NewDate(2024, 1, 2)))
	series := a.BalanceSeries(core.NewDate(2024, 1, 2), core.NewDate(2024, 1, 3))
	require.Len(t, series, 2)
	assert.Equal(t, core.MustMoney("249.50"), series[0].Balance)
	assert.Equal(t, core.MustMoney("239.50"), series[1].Balance)
}

func TestSummaryMemoInvalidatedByMutation(t *testing.T) {
	ctx := context.Background()
	a := newLocal(t, nil, 0, nil)
	_, err := a.CreateTransaction(ctx, core.TransactionInput{Amount: core.MustMoney("10"), Type: core.Expense, Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)

	first, err := a.Summary(ctx, core.Date{}, core.Date{}, core.GroupByCategory)
	require.NoError(t, err)
	assert.Equal(t, 1, a.SummaryCache().Size())

	again, err := a.Summary(ctx, core.Date{}, core.Date{}, core.GroupByCategory)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, a.SummaryCache().Size())

	_, err = a.CreateTransaction(ctx, core.TransactionInput{Amount: core.MustMoney("5"), Type: core.Expense, Date: core.NewDate(2024, 1, 2)})
	require.NoError(t, err)
	after, err := a.Summary(ctx, core.Date{}, core.Date{}, core.GroupByCategory)
	require.NoError(t, err)
	assert.Equal(t, core.MustMoney("15"), after[0].Amount)
}

func TestRemoteLastResolvedWins(t *testing.T) {
	slowRelease := make(chan struct{})
	slowStarted := make(chan struct{})
	calls := 0
	r := &fakeRemote{}
	r.listHook = func(ctx context.Context) ([]core.Transaction, error) {
		r.mu.Lock()
		calls++
		n := calls
		r.mu.Unlock()
		if n == 1 {
			close(slowStarted)
			<-slowRelease
			return []core.Transaction{tx("old", "1", core.Income, core.NewDate(2024, 1, 1), "")}, nil
		}
		return []core.Transaction{tx("new", "2", core.Income, core.NewDate(2024, 1, 2), "")}, nil
	}
	a := newRemote(t, r, nil)
	ctx := context.Background()

	type result struct {
		snap Snapshot
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		s, err := a.LoadAll(ctx)
		slow <- result{s, err}
	}()
	<-slowStarted

	fast, err := a.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID("new"), fast.Transactions[0].ID)

	close(slowRelease)
	res := <-slow
	require.NoError(t, res.err)
	assert.Equal(t, core.ID("old"), res.snap.Transactions[0].ID, "caller still receives its own result")

	cached := a.Transactions()
	require.Len(t, cached, 1)
	assert.Equal(t, core.ID("new"), cached[0].ID, "older result must not overwrite newer one")
	assert.Equal(t, fast.Seq, a.Status().Seq)
}

func TestSupersededLoadFailureKeepsFreshData(t *testing.T) {
	slowRelease := make(chan struct{})
	slowStarted := make(chan struct{})
	calls := 0
	r := &fakeRemote{}
	r.listHook = func(ctx context.Context) ([]core.Transaction, error) {
		r.mu.Lock()
		calls++
		n := calls
		r.mu.Unlock()
		if n == 1 {
			close(slowStarted)
			<-slowRelease
			return nil, fmt.Errorf("boom: %w", core.ErrNetwork)
		}
		return []core.Transaction{tx("new", "2", core.Income, core.NewDate(2024, 1, 2), "")}, nil
	}
	a := newRemote(t, r, nil)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := a.LoadAll(ctx)
		slow <- err
	}()
	<-slowStarted

	_, err := a.LoadAll(ctx)
	require.NoError(t, err)

	close(slowRelease)
	require.ErrorIs(t, <-slow, core.ErrNetwork, "the failing caller still gets its error")

	st := a.Status()
	assert.False(t, st.Stale)
	assert.Empty(t, st.LastError)
	require.Len(t, a.Transactions(), 1)
	assert.Equal(t, core.ID("new"), a.Transactions()[0].ID)
}

func TestLoadAllHonoursCancellation(t *testing.T) {
	r := &fakeRemote{}
	r.listHook = func(ctx context.Context) ([]core.Transaction, error) {
		return []core.Transaction{tx("x", "1", core.Income, core.NewDate(2024, 1, 1), "")}, nil
	}
	a := newRemote(t, r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.LoadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.Transactions())
	assert.False(t, a.Status().Loaded)
}

func TestRemoteNetworkFailureMarksStale(t *testing.T) {
	r := &fakeRemote{txs: []core.Transaction{tx("t1", "10", core.Expense, core.NewDate(2024, 1, 1), "")}}
	a := newRemote(t, r, nil)
	ctx := context.Background()

	_, err := a.LoadAll(ctx)
	require.NoError(t, err)

	r.setFail(fmt.Errorf("dial: %w", core.ErrNetwork))
	_, err = a.LoadAll(ctx)
	require.ErrorIs(t, err, core.ErrNetwork)

	st := a.Status()
	assert.True(t, st.Stale)
	assert.NotEmpty(t, st.LastError)
	assert.Len(t, a.Transactions(), 1, "last good data stays visible")

	_, err = a.CreateTransaction(ctx, core.TransactionInput{Amount: core.MustMoney("1"), Type: core.Income, Date: core.NewDate(2024, 1, 2)})
	assert.ErrorIs(t, err, core.ErrNetwork)

	r.setFail(nil)
	_, err = a.LoadAll(ctx)
	require.NoError(t, err)
	assert.False(t, a.Status().Stale)
}

func TestRemoteFailureBeforeFirstLoadIsNotStale(t *testing.T) {
	r := &fakeRemote{fail: fmt.Errorf("offline: %w", core.ErrNetwork)}
	a := newRemote(t, r, nil)
	_, err := a.LoadAll(context.Background())
	require.ErrorIs(t, err, core.ErrNetwork)
	assert.False(t, a.Status().Stale)
	assert.False(t, a.Status().Loaded)
}

func TestRemoteMutationsWriteThrough(t *testing.T) {
	r := &fakeRemote{}
	a := newRemote(t, r, nil)
	ctx := context.Background()

	created, err := a.CreateTransaction(ctx, core.TransactionInput{Amount: core.MustMoney("42"), Type: core.Income, Date: core.NewDate(2024, 2, 1)})
	require.NoError(t, err)
	assert.Len(t, r.txs, 1)
	assert.Len(t, a.Transactions(), 1)

	desc := "Bonus"
	updated, err := a.UpdateTransaction(ctx, created.ID, core.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Bonus", updated.Description)
	assert.Equal(t, "Bonus", r.txs[0].Description)

	require.NoError(t, a.DeleteTransaction(ctx, created.ID))
	assert.Empty(t, r.txs)
	assert.Empty(t, a.Transactions())
}

func TestRemoteUpdateOutsideLoadedWindow(t *testing.T) {
	r := &fakeRemote{txs: []core.Transaction{tx("old", "5", core.Expense, core.NewDate(2020, 1, 1), "")}}
	a := newRemote(t, r, nil)

	desc := "found"
	got, err := a.UpdateTransaction(context.Background(), "old", core.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "found", got.Description)
}

func TestMutationsPublishChanges(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	a := newLocal(t, nil, 0, pub)
	ctx := context.Background()

	cat, err := a.CreateCategory(ctx, core.CategoryInput{Name: "Food"})
	require.NoError(t, err, "publish failures never fail the mutation")
	created, err := a.CreateTransaction(ctx, core.TransactionInput{Amount: core.MustMoney("1"), Type: core.Income, Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)
	desc := "edited"
	_, err = a.UpdateTransaction(ctx, created.ID, core.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	require.NoError(t, a.DeleteTransaction(ctx, created.ID))
	require.NoError(t, a.DeleteTransaction(ctx, created.ID))
	require.NoError(t, a.DeleteCategory(ctx, cat.ID))

	assert.Equal(t, []string{
		"category:created",
		"transaction:created",
		"transaction:updated",
		"transaction:deleted",
		"category:updated",
	}, pub.ops())
}

func TestCloseEndsSession(t *testing.T) {
	sess := remote.NewSession("tok", remote.User{ID: "u1"}, time.Time{})
	a := newRemote(t, &fakeRemote{}, sess)
	require.True(t, sess.Valid())
	require.NoError(t, a.Close())
	assert.False(t, sess.Valid())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Remote ")
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, m)
	_, err = ParseMode("auto")
	assert.Error(t, err)
}
