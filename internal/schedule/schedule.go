// Package schedule decides which sources are due for ingestion and drives
// the fetch, extract, normalize pipeline over them with bounded concurrency.
// One failing source never aborts the run; its failure is recorded in the
// summary and the remaining sources proceed.
package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
)

// Fetch intervals per declared frequency. A month is taken as 30 days and
// a quarter as 91; the scheduler needs a floor between fetches, not a
// calendar.
const (
	dailyInterval     = 24 * time.Hour
	weeklyInterval    = 7 * 24 * time.Hour
	monthlyInterval   = 30 * 24 * time.Hour
	quarterlyInterval = 91 * 24 * time.Hour
)

// Interval returns the minimum duration between fetches for a frequency.
// ok is false for on-demand sources, which have no interval at all.
func Interval(f registry.Frequency) (d time.Duration, ok bool) {
	switch f {
	case registry.Daily:
		return dailyInterval, true
	case registry.Weekly:
		return weeklyInterval, true
	case registry.Monthly:
		return monthlyInterval, true
	case registry.Quarterly:
		return quarterlyInterval, true
	}
	return 0, false
}

// FetchLog is the slice of the storage collaborator the scheduler reads
// and writes: when each source last completed a successful pass.
type FetchLog interface {
	LastFetchTime(ctx context.Context, sourceID string) (t time.Time, ok bool, err error)
	RecordFetch(ctx context.Context, sourceID string, t time.Time) error
}

// Due reports whether a source should be fetched now. A source that has
// never been fetched is always due. On-demand sources are due only when
// explicitly selected by the operator.
func Due(def *registry.Definition, last time.Time, fetched bool, now time.Time, explicit bool) bool {
	interval, ok := Interval(def.FetchFrequency)
	if !ok {
		return explicit
	}
	if explicit {
		return true
	}
	if !fetched {
		return true
	}
	return now.Sub(last) >= interval
}

// Plan selects the sources for one run. Inactive sources are excluded
// unless named by opts.SourceID; jurisdiction and tag filters narrow the
// set; sources not yet due are returned as skips. Due sources come back
// ordered by priority descending, id ascending.
func Plan(ctx context.Context, reg *registry.Registry, fetchLog FetchLog, opts Options, now time.Time) (due []registry.Definition, skipped []SourceResult, err error) {
	var candidates []registry.Definition
	if opts.SourceID != "" {
		d := reg.Get(opts.SourceID)
		if d == nil {
			return nil, nil, &UnknownSourceError{ID: opts.SourceID}
		}
		candidates = []registry.Definition{*d}
	} else {
		candidates = reg.Filter(opts.Jurisdiction, opts.Tag)
	}

	explicit := opts.SourceID != ""
	for _, d := range candidates {
		if !d.IsActive && !explicit {
			skipped = append(skipped, SourceResult{SourceID: d.ID, Outcome: SourceSkipped, Reason: "inactive"})
			continue
		}
		if opts.Force {
			due = append(due, d)
			continue
		}
		last, fetched, err := fetchLog.LastFetchTime(ctx, d.ID)
		if err != nil {
			return nil, nil, err
		}
		if !Due(&d, last, fetched, now, explicit) {
			reason := "not due"
			if _, hasInterval := Interval(d.FetchFrequency); !hasInterval {
				reason = "on demand"
			}
			skipped = append(skipped, SourceResult{SourceID: d.ID, Outcome: SourceSkipped, Reason: reason})
			continue
		}
		due = append(due, d)
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ID < due[j].ID
	})

	log.Debug().Int("due", len(due)).Int("skipped", len(skipped)).Msg("run planned")
	return due, skipped, nil
}

// UnknownSourceError reports an operator-supplied source id that is not
// in the registry.
type UnknownSourceError struct {
	ID string
}

func (e *UnknownSourceError) Error() string {
	return "unknown source " + e.ID
}
