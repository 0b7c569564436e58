// Package accessor is the single entry point for reading and mutating
// transactions and categories. It fronts either the remote backend or the
// local key-value store, keeps the last loaded data in memory and derives
// the aggregate views from it.
package accessor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"zetafin/internal/cache"
	"zetafin/internal/core"
	"zetafin/internal/kvstore"
	"zetafin/internal/log"
	"zetafin/internal/remote"
)

// Mode selects the backing store for the accessor's lifetime.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// ParseMode accepts "local" and "remote" case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLocal:
		return ModeLocal, nil
	case ModeRemote:
		return ModeRemote, nil
	default:
		return "", fmt.Errorf("unknown data mode %q", s)
	}
}

// DefaultLimit caps how many transactions a load keeps.
const DefaultLimit = 100

// Config holds the fixed settings of an Accessor.
type Config struct {
	Limit            int
	Mode             Mode
	SummaryCacheSize int
}

// ChangePublisher receives every applied mutation.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c core.Change) error
}

// Deps are the collaborators of an Accessor. Local is always required;
// Remote is required in remote mode.
type Deps struct {
	Local     kvstore.Store
	Remote    remote.Store
	Session   *remote.Session
	Publisher ChangePublisher
	Logger    *log.Logger
	Clock     func() time.Time
	IDs       func() core.ID
}

// Snapshot is the result of one load.
type Snapshot struct {
	Transactions []core.Transaction `json:"transactions"`
	Categories   []core.Category    `json:"categories"`
	Seq          uint64             `json:"seq"`
}

// Status describes the accessor's current state.
type Status struct {
	Mode         Mode      `json:"mode"`
	Loaded       bool      `json:"loaded"`
	Stale        bool      `json:"stale"`
	LastLoad     time.Time `json:"lastLoad,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	Transactions int       `json:"transactions"`
	Categories   int       `json:"categories"`
	Seq          uint64    `json:"seq"`
}

// Accessor serves reads from memory and writes through to the active store.
type Accessor struct {
	cfg    Config
	local  kvstore.Store
	remote remote.Store
	sess   *remote.Session
	pub    ChangePublisher
	logger *log.Logger
	now    func() time.Time
	newID  func() core.ID

	issued atomic.Uint64

	// writeMu serializes mutations so read-modify-write on the local
	// collections cannot interleave.
	writeMu sync.Mutex

	mu         sync.RWMutex
	txs        []core.Transaction
	cats       []core.Category
	idx        core.CategoryIndex
	committed  uint64
	generation uint64
	loaded     bool
	stale      bool
	lastLoad   time.Time
	lastErr    error

	summaries *cache.LRUCache[[]core.CategoryAmount]
}

// New builds an Accessor. It performs no I/O.
func New(cfg Config, deps Deps) (*Accessor, error) {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.SummaryCacheSize <= 0 {
		cfg.SummaryCacheSize = 64
	}
	switch cfg.Mode {
	case ModeLocal:
		if deps.Local == nil {
			return nil, fmt.Errorf("local mode requires a local store")
		}
	case ModeRemote:
		if deps.Remote == nil {
			return nil, fmt.Errorf("remote mode requires a remote store")
		}
	default:
		return nil, fmt.Errorf("unknown data mode %q", cfg.Mode)
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.IDs == nil {
		deps.IDs = core.NewID
	}
	return &Accessor{
		cfg:       cfg,
		local:     deps.Local,
		remote:    deps.Remote,
		sess:      deps.Session,
		pub:       deps.Publisher,
		logger:    deps.Logger.WithComponent(log.ComponentAccessor).With(log.FieldMode, string(cfg.Mode)),
		now:       deps.Clock,
		newID:     deps.IDs,
		idx:       core.CategoryIndex{},
		summaries: cache.NewLRUCache[[]core.CategoryAmount](cfg.SummaryCacheSize, 0),
	}, nil
}

// Mode returns the backing store in use.
func (a *Accessor) Mode() Mode { return a.cfg.Mode }

// SummaryCache exposes the memo cache so it can be registered for cleanup.
func (a *Accessor) SummaryCache() *cache.LRUCache[[]core.CategoryAmount] { return a.summaries }

// Transactions returns a copy of the loaded transactions, newest first.
func (a *Accessor) Transactions() []core.Transaction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]core.Transaction(nil), a.txs...)
}

// Transaction finds a loaded transaction by id.
func (a *Accessor) Transaction(id core.ID) (core.Transaction, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i := indexOfTransaction(a.txs, id); i >= 0 {
		return a.txs[i], true
	}
	return core.Transaction{}, false
}

// Categories returns a copy of the loaded categories, including inactive ones.
func (a *Accessor) Categories() []core.Category {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]core.Category(nil), a.cats...)
}

// GetCategory finds a loaded category by id, comparing normalized ids.
func (a *Accessor) GetCategory(id core.ID) (core.Category, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.idx.Lookup(id)
}

// CategoryLabel resolves the display label for a transaction's category;
// unknown or empty ids get the Outros fallback.
func (a *Accessor) CategoryLabel(id core.ID) core.CategoryLabel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.idx.Label(id)
}

// Index returns the category index of the loaded data.
func (a *Accessor) Index() core.CategoryIndex {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.idx
}

func (a *Accessor) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := Status{
		Mode:         a.cfg.Mode,
		Loaded:       a.loaded,
		Stale:        a.stale,
		LastLoad:     a.lastLoad,
		Transactions: len(a.txs),
		Categories:   len(a.cats),
		Seq:          a.committed,
	}
	if a.lastErr != nil {
		st.LastError = a.lastErr.Error()
	}
	return st
}

// Close ends the remote session, if any. The accessor keeps serving the
// data it already holds.
func (a *Accessor) Close() error {
	if a.sess == nil {
		return nil
	}
	return a.sess.Close()
}

// commit installs new data if seq is newer than what is committed.
// Callers must hold no lock.
func (a *Accessor) commit(seq uint64, txs []core.Transaction, cats []core.Category) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq <= a.committed {
		return false
	}
	a.committed = seq
	a.setLocked(txs, cats)
	a.loaded = true
	a.stale = false
	a.lastErr = nil
	a.lastLoad = a.now()
	return true
}

func (a *Accessor) setLocked(txs []core.Transaction, cats []core.Category) {
	a.txs = txs
	a.cats = cats
	a.idx = core.IndexCategories(cats)
	a.generation++
}

func (a *Accessor) publish(ctx context.Context, c core.Change) {
	if a.pub == nil {
		return
	}
	c.Timestamp = a.now().UTC()
	if err := a.pub.PublishChange(ctx, c); err != nil {
		a.logger.WarnContext(ctx, "Failed to publish change",
			log.FieldOperation, string(c.Op),
			log.FieldEntity, c.Entity,
			log.FieldEntityID, c.ID.String(),
			log.FieldError, err)
	}
}
