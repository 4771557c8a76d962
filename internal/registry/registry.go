/*
This file implements the strategy registry: an append-only, indexable sequence
of adapter entries, each independently activatable. Indices are stable for the
registry's lifetime; entries are deactivated, never removed, so that operators
referencing strategies by index can rely on the numbering forever.

The registry has no lock of its own: it is owned exclusively by the pool and
driven entirely under the pool's lock.
*/

package registry

import (
	"errors"
	"fmt"

	"github.com/stratavault/svm/internal/logger"
	"github.com/stratavault/svm/internal/strategy"
	"github.com/stratavault/svm/internal/token"
)

// Error definitions for registry bookkeeping.
var (
	ErrIndexOutOfRange  = errors.New("strategy index is out of range")
	ErrInactiveStrategy = errors.New("strategy is inactive")
	ErrNilAdapter       = errors.New("adapter is nil")
	ErrNilAuthorizer    = errors.New("authorizer is nil")
)

var registryLogger = logger.GetForComponent("strategy_registry")

// Authorizer grants and revokes asset-transfer pre-authorization from the
// pool's custody to an adapter. Implemented by the pool.
type Authorizer interface {
	Grant(spender token.Address) error
	Revoke(spender token.Address) error
}

// Entry is one registered adapter with its activation flag. Inactive entries
// are retained for audit and index stability but excluded from allocation,
// withdrawal pull, and accounting.
type Entry struct {
	Adapter strategy.Strategy
	Active  bool
}

// Registry holds the ordered adapter entries.
type Registry struct {
	auth    Authorizer
	entries []Entry
}

// New creates an empty registry bound to the pool's authorizer.
func New(auth Authorizer) (*Registry, error) {
	if auth == nil {
		return nil, ErrNilAuthorizer
	}
	return &Registry{auth: auth}, nil
}

// Add connects the adapter, appends it as an active entry, and grants it
// unlimited asset-transfer pre-authorization from pool custody. Returns the
// entry's permanent index. A connect failure propagates and leaves the
// registry untouched.
func (r *Registry) Add(adapter strategy.Strategy, cfg strategy.ConnectConfig) (int, error) {
	if adapter == nil {
		return 0, ErrNilAdapter
	}
	if err := adapter.Connect(cfg); err != nil {
		return 0, fmt.Errorf("adapter connect failed: %w", err)
	}
	if err := r.auth.Grant(adapter.Address()); err != nil {
		// Unwind the connect so a half-registered adapter never exists.
		if dErr := adapter.Disconnect(true); dErr != nil {
			registryLogger.Error().Err(dErr).
				Str("adapter", string(adapter.Address())).
				Msg("Failed to disconnect adapter after authorization failure")
		}
		return 0, fmt.Errorf("failed to grant custody authorization: %w", err)
	}

	r.entries = append(r.entries, Entry{Adapter: adapter, Active: true})
	index := len(r.entries) - 1

	registryLogger.Info().
		Int("index", index).
		Str("adapter", string(adapter.Address())).
		Msg("Strategy registered")
	return index, nil
}

// Deactivate disconnects the adapter at index and marks the entry inactive,
// revoking its custody authorization. With force unset, an adapter still
// holding assets refuses and the entry stays active.
func (r *Registry) Deactivate(index int, force bool) error {
	if index < 0 || index >= len(r.entries) {
		return fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, len(r.entries))
	}
	entry := &r.entries[index]
	if !entry.Active {
		return fmt.Errorf("%w: index %d", ErrInactiveStrategy, index)
	}

	if err := entry.Adapter.Disconnect(force); err != nil {
		return fmt.Errorf("adapter disconnect failed: %w", err)
	}
	if err := r.auth.Revoke(entry.Adapter.Address()); err != nil {
		registryLogger.Error().Err(err).
			Int("index", index).
			Msg("Failed to revoke custody authorization for deactivated strategy")
	}

	entry.Active = false
	registryLogger.Info().
		Int("index", index).
		Bool("forced", force).
		Str("adapter", string(entry.Adapter.Address())).
		Msg("Strategy deactivated")
	return nil
}

// Count returns the number of entries ever added, active or not.
func (r *Registry) Count() int {
	return len(r.entries)
}

// Get returns the entry at index.
func (r *Registry) Get(index int) (Entry, error) {
	if index < 0 || index >= len(r.entries) {
		return Entry{}, fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, len(r.entries))
	}
	return r.entries[index], nil
}

// Entries returns a snapshot copy of all entries in index order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
