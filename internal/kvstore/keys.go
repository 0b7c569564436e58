package kvstore

import (
	"fmt"
	"strings"
)

// Keys used by the application. These strings are persisted and must not
// change between versions.
const (
	KeyTransactions     = "zetafin_transactions"
	KeyCategories       = "zetafin_categories"
	KeyUser             = "zetafin_user"
	KeyTheme            = "zetafin_theme"
	KeyCoupleConnection = "zetafin_couple_connection"
	KeyEditMode         = "zetafin_edit_mode"
)

// Prefixes written by current and older releases.
var knownPrefixes = []string{
	"zetafin_",
	"zetafin-",
	"zetaFin_",
	"zetaFin-",
	"zeta_fin_",
	"financas_",
}

// Unprefixed names used by the first releases before keys were namespaced.
var legacyKeys = map[string]struct{}{
	"transactions":      {},
	"categories":        {},
	"transacoes":        {},
	"categorias":        {},
	"user":              {},
	"theme":             {},
	"couple_connection": {},
	"coupleConnection":  {},
	"editMode":          {},
	"edit_mode":         {},
}

// IsKnownKey reports whether key belongs to this application under any
// current or legacy spelling.
func IsKnownKey(key string) bool {
	if _, ok := legacyKeys[key]; ok {
		return true
	}
	for _, p := range knownPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// PurgeAllKnownKeys removes every application key from s and returns the
// removed keys. Foreign keys are left alone.
func PurgeAllKnownKeys(s Store) ([]string, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	var removed []string
	for _, k := range keys {
		if !IsKnownKey(k) {
			continue
		}
		if err := s.Remove(k); err != nil {
			return removed, fmt.Errorf("remove %q: %w", k, err)
		}
		removed = append(removed, k)
	}
	return removed, nil
}
