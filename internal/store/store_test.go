package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
)

// Both implementations must satisfy the full collaborator surface.
var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
)

func doc(id string, version int, fp string) *normalize.Document {
	return &normalize.Document{
		DocumentID:  id,
		SourceID:    "src-1",
		Endpoint:    "/doc",
		Version:     version,
		Fingerprint: fp,
		Text:        "body " + fp,
		FetchedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"memory": NewMemory(), "sqlite": sq}
}

func TestVersionLog(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			fp, err := s.LastFingerprint(ctx, "d1")
			require.NoError(t, err)
			assert.Empty(t, fp, "unknown document has no fingerprint")

			v, err := s.LastVersion(ctx, "d1")
			require.NoError(t, err)
			assert.Zero(t, v)

			require.NoError(t, s.WriteDocument(ctx, doc("d1", 1, "fp-a")))
			require.NoError(t, s.WriteDocument(ctx, doc("d1", 2, "fp-b")))

			fp, err = s.LastFingerprint(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, "fp-b", fp)

			v, err = s.LastVersion(ctx, "d1")
			require.NoError(t, err)
			assert.Equal(t, 2, v)
		})
	}
}

func TestWriteDocument_EnforcesMonotonicVersions(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.WriteDocument(ctx, doc("d2", 1, "fp-a")))

			// Re-writing the same version must fail: versions are immutable.
			err := s.WriteDocument(ctx, doc("d2", 1, "fp-x"))
			require.Error(t, err)

			// Skipping a version must fail as well.
			err = s.WriteDocument(ctx, doc("d2", 3, "fp-y"))
			require.Error(t, err)
		})
	}
}

func TestFetchLog(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.LastFetchTime(ctx, "src-1")
			require.NoError(t, err)
			assert.False(t, ok)

			t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			t2 := t1.Add(time.Hour)
			require.NoError(t, s.RecordFetch(ctx, "src-1", t2))
			// An out-of-order record must not move the log backwards.
			require.NoError(t, s.RecordFetch(ctx, "src-1", t1))

			got, ok, err := s.LastFetchTime(ctx, "src-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, got.Equal(t2))
		})
	}
}
