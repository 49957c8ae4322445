// Package store defines the persistence interface for agreement metadata and
// the transition event log. Implementations include PostgreSQL (durable
// mirror), Redis (read-through cache), and in-memory (for testing).
//
// Books are the source of truth for live state; the store mirrors it for bulk
// reads and keeps the event history.
package store

import (
	"context"
	"errors"

	"github.com/atmx/settlement-engine/internal/model"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface.
type Store interface {
	// --- Agreement metadata ---

	// SaveAgreement inserts or replaces the metadata entry for an agreement.
	SaveAgreement(ctx context.Context, md *model.Metadata) error

	// GetAgreement retrieves an agreement's metadata by instance id.
	GetAgreement(ctx context.Context, id model.Address) (*model.Metadata, error)

	// ListAgreements returns every agreement of a book, oldest first.
	ListAgreements(ctx context.Context, book model.Address) ([]model.Metadata, error)

	// --- Immutable event log ---

	// AppendEvent records a transition. Events are never modified.
	AppendEvent(ctx context.Context, ev *model.Event) error

	// ListEvents returns an agreement's events in the order they happened.
	ListEvents(ctx context.Context, agreement model.Address) ([]model.Event, error)
}
