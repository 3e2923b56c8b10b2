// Package mirror defines the remote replica the sync engine pushes to
// and pulls from. The mirror is a plain document store: it holds the
// latest version of each row keyed by collection and remote id, and
// knows nothing about billing or stock rules. The local store stays
// authoritative.
package mirror

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the mirror cannot be reached. The sync
// engine treats it as a soft failure: rows stay dirty and upload on the
// next pass.
var ErrUnavailable = errors.New("mirror: unavailable")

// Document is one synced row in wire form. Payload carries the entity
// fields; local-only bookkeeping (local id, dirty flag, row state)
// never leaves the device.
type Document struct {
	RemoteID  string
	UpdatedAt time.Time
	Payload   map[string]any
}

type Mirror interface {
	// Ping reports whether the mirror is reachable.
	Ping(ctx context.Context) error

	// Upsert stores the latest version of a document in a collection.
	Upsert(ctx context.Context, collection string, doc Document) error

	// Delete removes a document. Deleting an absent document is not an
	// error: tombstone pushes must be idempotent.
	Delete(ctx context.Context, collection, remoteID string) error

	// ChangedSince returns documents modified strictly after since,
	// ordered by UpdatedAt ascending.
	ChangedSince(ctx context.Context, collection string, since time.Time) ([]Document, error)
}
