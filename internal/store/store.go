// Package store holds the storage collaborator implementations the pipeline
// writes through: an append-only document version log plus a per-source
// fetch log used for due-interval scheduling.
package store

import (
	"context"
	"time"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
)

// Store is the full storage collaborator surface: the normalizer's
// fingerprint compare-and-write plus the scheduler's fetch log.
// Implementations must be safe for concurrent use.
type Store interface {
	normalize.Store

	// LastFetchTime returns when the source last completed a successful
	// fetch; ok is false when it never has.
	LastFetchTime(ctx context.Context, sourceID string) (t time.Time, ok bool, err error)
	// RecordFetch logs a successful fetch of the source at time t.
	RecordFetch(ctx context.Context, sourceID string, t time.Time) error

	Close() error
}
