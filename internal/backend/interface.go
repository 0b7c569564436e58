// Package backend assembles the data accessor from configuration: the local
// store, the optional remote store and change publisher, and the data mode.
package backend

import (
	"context"

	"zetafin/internal/accessor"
	"zetafin/internal/amqp"
	"zetafin/internal/kvstore"
	"zetafin/internal/remote"
)

// CleanupFunc releases the resources of a Result.
type CleanupFunc func() error

// Result is a ready-to-use accessor plus the stores behind it.
type Result struct {
	Accessor *accessor.Accessor
	Mode     accessor.Mode
	Local    kvstore.Store
	// Remote is nil when no remote backend is configured.
	Remote  remote.Store
	Session *remote.Session
	// Publisher is nil when AMQP is disabled or unreachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, cfg Config) (*Result, error)
}

// LocalStoreType names a local key-value store implementation.
type LocalStoreType string

const (
	MemoryStore LocalStoreType = "memory"
	SQLiteStore LocalStoreType = "sqlite"
)

// RemoteType names a remote store implementation.
type RemoteType string

const (
	RESTRemote     RemoteType = "rest"
	PostgresRemote RemoteType = "postgres"
	NoRemote       RemoteType = "none"
)

// ModeAuto picks remote when it is reachable and authenticated.
const ModeAuto = "auto"

// IsValid returns true if the local store type is known
func (t LocalStoreType) IsValid() bool {
	return t == MemoryStore || t == SQLiteStore
}

// IsValid returns true if the remote type is known
func (t RemoteType) IsValid() bool {
	switch t {
	case RESTRemote, PostgresRemote, NoRemote:
		return true
	default:
		return false
	}
}
