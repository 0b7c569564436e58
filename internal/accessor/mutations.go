package accessor

import (
	"context"
	"errors"
	"fmt"

	"zetafin/internal/core"
	"zetafin/internal/kvstore"
	"zetafin/internal/log"
)

// CreateTransaction validates the input, assigns an id and timestamps and
// writes the transaction through to the active store.
func (a *Accessor) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	t := in.Transaction().Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	now := a.now().UTC()
	t.ID = a.newID().Normalize()
	t.CreatedAt, t.UpdatedAt = now, now

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	switch a.cfg.Mode {
	case ModeRemote:
		saved, err := a.remote.InsertTransaction(ctx, t)
		if err != nil {
			return core.Transaction{}, a.mutationFailed(ctx, log.OpCreate, core.EntityTransaction, t.ID, err)
		}
		t = saved.Normalize()
		a.mutateCache(func(txs []core.Transaction, cats []core.Category) ([]core.Transaction, []core.Category) {
			return append([]core.Transaction{t}, txs...), cats
		})
	default:
		txs, err := a.localTransactions()
		if err != nil {
			return core.Transaction{}, a.mutationFailed(ctx, log.OpCreate, core.EntityTransaction, t.ID, err)
		}
		if err := a.saveLocalTransactions(append(txs, t)); err != nil {
			return core.Transaction{}, a.mutationFailed(ctx, log.OpCreate, core.EntityTransaction, t.ID, err)
		}
		a.reloadLocal()
	}

	a.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithTransaction(t.ID.String(), t.Amount.Cents, string(t.Type)).ToSlice()...)
	a.publish(ctx, core.Change{Op: core.OpCreated, Entity: core.EntityTransaction, ID: t.ID, Transaction: &t})
	return t, nil
}

// UpdateTransaction merges patch into the stored transaction, re-validates
// it and writes it through. A missing id yields core.ErrNotFound.
func (a *Accessor) UpdateTransaction(ctx context.Context, id core.ID, patch core.TransactionPatch) (core.Transaction, error) {
	id = id.Normalize()
	if id == "" {
		return core.Transaction{}, core.NotFound(core.EntityTransaction, id)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	var updated core.Transaction
	switch a.cfg.Mode {
	case ModeRemote:
		current, err := a.currentRemoteTransaction(ctx, id)
		if err != nil {
			return core.Transaction{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityTransaction, id, err)
		}
		updated, err = a.applyTransactionPatch(current, patch)
		if err != nil {
			return core.Transaction{}, err
		}
		saved, err := a.remote.UpdateTransaction(ctx, updated)
		if err != nil {
			return core.Transaction{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityTransaction, id, err)
		}
		updated = saved.Normalize()
		a.mutateCache(func(txs []core.Transaction, cats []core.Category) ([]core.Transaction, []core.Category) {
			return replaceTransaction(txs, updated), cats
		})
	default:
		txs, err := a.localTransactions()
		if err != nil {
			return core.Transaction{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityTransaction, id, err)
		}
		i := indexOfTransaction(txs, id)
		if i < 0 {
			return core.Transaction{}, core.NotFound(core.EntityTransaction, id)
		}
		updated, err = a.applyTransactionPatch(txs[i], patch)
		if err != nil {
			return core.Transaction{}, err
		}
		txs[i] = updated
		if err := a.saveLocalTransactions(txs); err != nil {
			return core.Transaction{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityTransaction, id, err)
		}
		a.reloadLocal()
	}

	a.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithTransaction(updated.ID.String(), updated.Amount.Cents, string(updated.Type)).ToSlice()...)
	a.publish(ctx, core.Change{Op: core.OpUpdated, Entity: core.EntityTransaction, ID: updated.ID, Transaction: &updated})
	return updated, nil
}

// DeleteTransaction removes a transaction. Deleting an absent id succeeds.
func (a *Accessor) DeleteTransaction(ctx context.Context, id core.ID) error {
	id = id.Normalize()
	if id == "" {
		return nil
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	switch a.cfg.Mode {
	case ModeRemote:
		if err := a.remote.DeleteTransaction(ctx, id); err != nil {
			return a.mutationFailed(ctx, log.OpDelete, core.EntityTransaction, id, err)
		}
		a.mutateCache(func(txs []core.Transaction, cats []core.Category) ([]core.Transaction, []core.Category) {
			return removeTransaction(txs, id), cats
		})
	default:
		txs, err := a.localTransactions()
		if err != nil {
			return a.mutationFailed(ctx, log.OpDelete, core.EntityTransaction, id, err)
		}
		kept := removeTransaction(txs, id)
		if len(kept) == len(txs) {
			return nil
		}
		if err := a.saveLocalTransactions(kept); err != nil {
			return a.mutationFailed(ctx, log.OpDelete, core.EntityTransaction, id, err)
		}
		a.reloadLocal()
	}

	a.logger.InfoContext(ctx, "Transaction deleted", log.FieldEntityID, id.String())
	a.publish(ctx, core.Change{Op: core.OpDeleted, Entity: core.EntityTransaction, ID: id})
	return nil
}

// CreateCategory validates and stores a new active category.
func (a *Accessor) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	c := in.Category()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	now := a.now().UTC()
	c.ID = a.newID().Normalize()
	c.CreatedAt, c.UpdatedAt = now, now

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	switch a.cfg.Mode {
	case ModeRemote:
		saved, err := a.remote.InsertCategory(ctx, c)
		if err != nil {
			return core.Category{}, a.mutationFailed(ctx, log.OpCreate, core.EntityCategory, c.ID, err)
		}
		c = saved
		a.mutateCache(func(txs []core.Transaction, cats []core.Category) ([]core.Transaction, []core.Category) {
			return txs, replaceCategory(cats, c)
		})
	default:
		cats, err := a.localCategories()
		if err != nil {
			return core.Category{}, a.mutationFailed(ctx, log.OpCreate, core.EntityCategory, c.ID, err)
		}
		if err := a.saveLocalCategories(append(cats, c)); err != nil {
			return core.Category{}, a.mutationFailed(ctx, log.OpCreate, core.EntityCategory, c.ID, err)
		}
		a.reloadLocal()
	}

	a.logger.InfoContext(ctx, "Category created", log.FieldEntityID, c.ID.String(), "name", c.Name)
	a.publish(ctx, core.Change{Op: core.OpCreated, Entity: core.EntityCategory, ID: c.ID, Category: &c})
	return c, nil
}

// UpdateCategory merges patch into an existing category.
func (a *Accessor) UpdateCategory(ctx context.Context, id core.ID, patch core.CategoryPatch) (core.Category, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	c, err := a.updateCategoryLocked(ctx, id, patch)
	if err != nil {
		return core.Category{}, err
	}
	a.logger.InfoContext(ctx, "Category updated", log.FieldEntityID, c.ID.String())
	a.publish(ctx, core.Change{Op: core.OpUpdated, Entity: core.EntityCategory, ID: c.ID, Category: &c})
	return c, nil
}

// DeleteCategory deactivates a category. Transactions keep their reference
// and it keeps resolving to the same label. Deleting an absent or already
// inactive category succeeds.
func (a *Accessor) DeleteCategory(ctx context.Context, id core.ID) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	inactive := false
	c, err := a.updateCategoryLocked(ctx, id, core.CategoryPatch{Active: &inactive})
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "Category deactivated", log.FieldEntityID, c.ID.String())
	// The row still exists, inactive, so subscribers see an update.
	a.publish(ctx, core.Change{Op: core.OpUpdated, Entity: core.EntityCategory, ID: c.ID, Category: &c})
	return nil
}

func (a *Accessor) updateCategoryLocked(ctx context.Context, id core.ID, patch core.CategoryPatch) (core.Category, error) {
	id = id.Normalize()
	if id == "" {
		return core.Category{}, core.NotFound(core.EntityCategory, id)
	}

	switch a.cfg.Mode {
	case ModeRemote:
		current, err := a.currentRemoteCategory(ctx, id)
		if err != nil {
			return core.Category{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityCategory, id, err)
		}
		updated := patch.Apply(current)
		if err := updated.Validate(); err != nil {
			return core.Category{}, err
		}
		updated.UpdatedAt = a.now().UTC()
		saved, err := a.remote.UpdateCategory(ctx, updated)
		if err != nil {
			return core.Category{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityCategory, id, err)
		}
		a.mutateCache(func(txs []core.Transaction, cats []core.Category) ([]core.Transaction, []core.Category) {
			return txs, replaceCategory(cats, saved)
		})
		return saved, nil
	default:
		cats, err := a.localCategories()
		if err != nil {
			return core.Category{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityCategory, id, err)
		}
		i := -1
		for j, c := range cats {
			if c.ID.Equal(id) {
				i = j
				break
			}
		}
		if i < 0 {
			return core.Category{}, core.NotFound(core.EntityCategory, id)
		}
		updated := patch.Apply(cats[i])
		if err := updated.Validate(); err != nil {
			return core.Category{}, err
		}
		updated.ID = id
		updated.UpdatedAt = a.now().UTC()
		cats[i] = updated
		if err := a.saveLocalCategories(cats); err != nil {
			return core.Category{}, a.mutationFailed(ctx, log.OpUpdate, core.EntityCategory, id, err)
		}
		a.reloadLocal()
		return updated, nil
	}
}

func (a *Accessor) applyTransactionPatch(current core.Transaction, patch core.TransactionPatch) (core.Transaction, error) {
	updated := patch.Apply(current).Normalize()
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}
	updated.ID = current.ID.Normalize()
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = a.now().UTC()
	return updated, nil
}

// currentRemoteTransaction prefers the cached copy and falls back to the
// backend for rows outside the loaded window.
func (a *Accessor) currentRemoteTransaction(ctx context.Context, id core.ID) (core.Transaction, error) {
	a.mu.RLock()
	i := indexOfTransaction(a.txs, id)
	var t core.Transaction
	if i >= 0 {
		t = a.txs[i]
	}
	a.mu.RUnlock()
	if i >= 0 {
		return t, nil
	}
	return a.remote.GetTransaction(ctx, id)
}

func (a *Accessor) currentRemoteCategory(ctx context.Context, id core.ID) (core.Category, error) {
	if c, ok := a.GetCategory(id); ok {
		return c, nil
	}
	cats, err := a.remote.ListCategories(ctx)
	if err != nil {
		return core.Category{}, err
	}
	if c, ok := core.IndexCategories(cats).Lookup(id); ok {
		return c, nil
	}
	return core.Category{}, core.NotFound(core.EntityCategory, id)
}

// mutateCache applies fn to the cached collections and supersedes any load
// that was issued before the mutation.
func (a *Accessor) mutateCache(fn func([]core.Transaction, []core.Category) ([]core.Transaction, []core.Category)) {
	seq := a.issued.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	txs, cats := fn(append([]core.Transaction(nil), a.txs...), append([]core.Category(nil), a.cats...))
	a.committed = seq
	a.setLocked(prepareTransactions(txs, a.cfg.Limit), prepareCategories(cats))
}

// reloadLocal refreshes memory from the local store after a write.
func (a *Accessor) reloadLocal() {
	txs, cats := a.fetchLocal()
	seq := a.issued.Add(1)
	a.commit(seq, prepareTransactions(txs, a.cfg.Limit), prepareCategories(cats))
}

// localTransactions reads the stored collection for a read-modify-write.
// Unlike a load, failures abort the mutation.
func (a *Accessor) localTransactions() ([]core.Transaction, error) {
	return kvstore.ReadCollection[core.Transaction](a.local, kvstore.KeyTransactions)
}

func (a *Accessor) localCategories() ([]core.Category, error) {
	return kvstore.ReadCollection[core.Category](a.local, kvstore.KeyCategories)
}

func (a *Accessor) saveLocalTransactions(txs []core.Transaction) error {
	for i := range txs {
		txs[i] = txs[i].Normalize()
	}
	return kvstore.SaveCollection(a.local, kvstore.KeyTransactions, txs)
}

func (a *Accessor) saveLocalCategories(cats []core.Category) error {
	return kvstore.SaveCollection(a.local, kvstore.KeyCategories, prepareCategories(cats))
}

func (a *Accessor) mutationFailed(ctx context.Context, op, entity string, id core.ID, err error) error {
	a.logger.ErrorContext(ctx, "Mutation failed",
		log.NewFields().WithOperation(op).WithEntity(entity, id.String()).WithError(err).ToSlice()...)
	if errors.Is(err, core.ErrNetwork) {
		a.mu.Lock()
		if a.loaded {
			a.stale = true
		}
		a.lastErr = err
		a.mu.Unlock()
	}
	return fmt.Errorf("%s %s: %w", op, entity, err)
}

func indexOfTransaction(txs []core.Transaction, id core.ID) int {
	for i, t := range txs {
		if t.ID.Equal(id) {
			return i
		}
	}
	return -1
}

func replaceTransaction(txs []core.Transaction, t core.Transaction) []core.Transaction {
	if i := indexOfTransaction(txs, t.ID); i >= 0 {
		txs[i] = t
		return txs
	}
	return append(txs, t)
}

func removeTransaction(txs []core.Transaction, id core.ID) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.ID.Equal(id) {
			out = append(out, t)
		}
	}
	return out
}

func replaceCategory(cats []core.Category, c core.Category) []core.Category {
	for i := range cats {
		if cats[i].ID.Equal(c.ID) {
			cats[i] = c
			return cats
		}
	}
	return append(cats, c)
}
