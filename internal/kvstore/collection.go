package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zetafin/internal/core"
	"zetafin/internal/log"
)

// LoadCollection reads a JSON array stored under key. A missing key, a read
// failure or malformed JSON all yield an empty slice; the last two are
// logged so a corrupted cache never blocks the caller.
func LoadCollection[T any](s Store, key string, logger *log.Logger) []T {
	logger = orDefault(logger)
	raw, ok, err := s.Get(key)
	if err != nil {
		logger.Warn("Failed to read local collection, using empty", log.FieldKey, key, log.FieldError, err)
		return []T{}
	}
	if !ok || raw == "" {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logger.Warn("Malformed local collection, using empty", log.FieldKey, key, log.FieldError, err, "bytes", len(raw))
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// ReadCollection is the strict counterpart of LoadCollection used before a
// read-modify-write: a read failure or malformed JSON is returned wrapped in
// core.ErrStorage so the caller aborts instead of overwriting the stored
// collection. A missing key is an empty collection.
func ReadCollection[T any](s Store, key string) ([]T, error) {
	raw, ok, err := s.Get(key)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w: %w", key, core.ErrStorage, err)
	}
	if !ok || raw == "" {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode %q: %w: %v", key, core.ErrStorage, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func orDefault(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.FromContext(context.Background())
	}
	return logger
}

// SaveCollection serializes items and stores them under key.
func SaveCollection[T any](s Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %q: %w: %v", key, core.ErrStorage, err)
	}
	if err := s.Set(key, string(b)); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// CoupleConnection is the persisted state of the partner link.
type CoupleConnection struct {
	PartnerEmail string    `json:"partnerEmail"`
	Connected    bool      `json:"connected"`
	ConnectedAt  time.Time `json:"connectedAt,omitempty"`
}

// EditMode returns the edit-mode toggle; unset or unreadable means false.
// A read failure is logged.
func EditMode(s Store, logger *log.Logger) bool {
	raw, ok, err := s.Get(KeyEditMode)
	if err != nil {
		orDefault(logger).Warn("Failed to read edit mode, using off", log.FieldKey, KeyEditMode, log.FieldError, err)
		return false
	}
	return ok && raw == "true"
}

func SetEditMode(s Store, on bool) error {
	v := "false"
	if on {
		v = "true"
	}
	return s.Set(KeyEditMode, v)
}

// LoadCoupleConnection returns the stored partner link, or the zero value
// when it is missing, unreadable or malformed. The last two are logged.
func LoadCoupleConnection(s Store, logger *log.Logger) CoupleConnection {
	var cc CoupleConnection
	raw, ok, err := s.Get(KeyCoupleConnection)
	if err != nil {
		orDefault(logger).Warn("Failed to read couple connection", log.FieldKey, KeyCoupleConnection, log.FieldError, err)
		return cc
	}
	if !ok || raw == "" {
		return cc
	}
	if err := json.Unmarshal([]byte(raw), &cc); err != nil {
		orDefault(logger).Warn("Malformed couple connection, using empty", log.FieldKey, KeyCoupleConnection, log.FieldError, err)
		return CoupleConnection{}
	}
	return cc
}

func SetCoupleConnection(s Store, cc CoupleConnection) error {
	b, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("encode couple connection: %w: %v", core.ErrStorage, err)
	}
	return s.Set(KeyCoupleConnection, string(b))
}
