package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/store"
)

func def(id string, priority int, freq registry.Frequency) registry.Definition {
	return registry.Definition{
		ID:             id,
		Name:           id,
		SourceType:     registry.StaticHTML,
		FetchMethod:    registry.DirectDownload,
		BaseURL:        "https://example.gov",
		Endpoints:      []string{"/doc"},
		FetchFrequency: freq,
		Priority:       priority,
		IsActive:       true,
	}
}

func TestInterval(t *testing.T) {
	cases := []struct {
		freq registry.Frequency
		want time.Duration
		ok   bool
	}{
		{registry.Daily, 24 * time.Hour, true},
		{registry.Weekly, 7 * 24 * time.Hour, true},
		{registry.Monthly, 30 * 24 * time.Hour, true},
		{registry.Quarterly, 91 * 24 * time.Hour, true},
		{registry.OnDemand, 0, false},
	}
	for _, tc := range cases {
		got, ok := Interval(tc.freq)
		assert.Equal(t, tc.ok, ok, string(tc.freq))
		assert.Equal(t, tc.want, got, string(tc.freq))
	}
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	weekly := def("s", 0, registry.Weekly)
	onDemand := def("od", 0, registry.OnDemand)

	assert.True(t, Due(&weekly, time.Time{}, false, now, false), "never fetched is always due")
	assert.False(t, Due(&weekly, now.Add(-time.Hour), true, now, false), "fetched an hour ago")
	assert.False(t, Due(&weekly, now.Add(-6*24*time.Hour), true, now, false), "six days ago")
	assert.True(t, Due(&weekly, now.Add(-7*24*time.Hour), true, now, false), "exactly one interval")
	assert.True(t, Due(&weekly, now.Add(-30*24*time.Hour), true, now, false), "long overdue")

	assert.False(t, Due(&onDemand, time.Time{}, false, now, false), "on demand waits for selection")
	assert.True(t, Due(&onDemand, now.Add(-time.Minute), true, now, true), "explicit selection ignores history")
}

func TestPlan_OrdersByPriorityThenID(t *testing.T) {
	reg := registry.New([]registry.Definition{
		def("c-low", 8, registry.Daily),
		def("a-top", 10, registry.Daily),
		def("b-low", 8, registry.Daily),
	})
	due, skipped, err := Plan(context.Background(), reg, store.NewMemory(), Options{}, time.Now())
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, due, 3)
	assert.Equal(t, "a-top", due[0].ID)
	assert.Equal(t, "b-low", due[1].ID)
	assert.Equal(t, "c-low", due[2].ID)
}

func TestPlan_SkipsInactiveNotDueAndOnDemand(t *testing.T) {
	inactive := def("inactive", 0, registry.Daily)
	inactive.IsActive = false
	reg := registry.New([]registry.Definition{
		def("fresh", 0, registry.Weekly),
		def("od", 0, registry.OnDemand),
		inactive,
	})
	mem := store.NewMemory()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, mem.RecordFetch(context.Background(), "fresh", now.Add(-time.Hour)))

	due, skipped, err := Plan(context.Background(), reg, mem, Options{}, now)
	require.NoError(t, err)
	assert.Empty(t, due)
	require.Len(t, skipped, 3)

	reasons := map[string]string{}
	for _, s := range skipped {
		assert.Equal(t, SourceSkipped, s.Outcome)
		reasons[s.SourceID] = s.Reason
	}
	assert.Equal(t, "inactive", reasons["inactive"])
	assert.Equal(t, "not due", reasons["fresh"])
	assert.Equal(t, "on demand", reasons["od"])
}

func TestPlan_ExplicitSelectionOverrides(t *testing.T) {
	inactive := def("od", 0, registry.OnDemand)
	inactive.IsActive = false
	reg := registry.New([]registry.Definition{inactive})

	due, skipped, err := Plan(context.Background(), reg, store.NewMemory(), Options{SourceID: "od"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, due, 1)
	assert.Equal(t, "od", due[0].ID)
}

func TestPlan_UnknownSource(t *testing.T) {
	reg := registry.New(nil)
	_, _, err := Plan(context.Background(), reg, store.NewMemory(), Options{SourceID: "nope"}, time.Now())
	var unknown *UnknownSourceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.ID)
}

func TestPlan_ForceIgnoresFetchLog(t *testing.T) {
	reg := registry.New([]registry.Definition{def("fresh", 0, registry.Weekly)})
	mem := store.NewMemory()
	now := time.Now()
	require.NoError(t, mem.RecordFetch(context.Background(), "fresh", now.Add(-time.Minute)))

	due, skipped, err := Plan(context.Background(), reg, mem, Options{Force: true}, now)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, due, 1)
}
