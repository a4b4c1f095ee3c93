package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/extract"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/fetch"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
)

// Fetcher retrieves one endpoint of a source.
type Fetcher interface {
	Fetch(ctx context.Context, def *registry.Definition, endpoint string) (*fetch.Result, error)
}

// Extractor turns a fetch result into extracted content.
type Extractor interface {
	Extract(ctx context.Context, def *registry.Definition, endpoint string, res *fetch.Result) (*extract.Content, error)
}

// Normalizer performs the fingerprint compare-and-write for one endpoint.
type Normalizer interface {
	Normalize(ctx context.Context, def *registry.Definition, endpoint string, content *extract.Content) (*normalize.Outcome, error)
}

const (
	// DefaultMaxConcurrentFetches bounds simultaneous in-flight fetches
	// across all sources.
	DefaultMaxConcurrentFetches = 5
	// DefaultMaxConcurrentExtracts bounds simultaneous extractions. OCR is
	// CPU heavy, so this pool is smaller than the fetch pool.
	DefaultMaxConcurrentExtracts = 2
)

// Options selects and filters the sources of one run.
type Options struct {
	// SourceID restricts the run to one source, selecting it even when
	// inactive or on demand.
	SourceID     string
	Jurisdiction string
	Tag          string
	// Force fetches selected sources regardless of when they last ran.
	Force bool

	MaxConcurrentFetches  int
	MaxConcurrentExtracts int
}

// Runner drives the ingestion pipeline over the due sources of a registry.
type Runner struct {
	Fetcher    Fetcher
	Extractor  Extractor
	Normalizer Normalizer
	FetchLog   FetchLog

	now func() time.Time
}

func (r *Runner) timeNow() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now().UTC()
}

// Run executes one ingestion pass. Endpoints run concurrently under the
// fetch and extract pools; a source's result waits for all its endpoints.
// Cancelling ctx stops new work and marks unfinished endpoints as failed,
// while results already completed stay in the summary.
func (r *Runner) Run(ctx context.Context, reg *registry.Registry, opts Options) (*Summary, error) {
	summary := &Summary{Started: r.timeNow()}

	due, skipped, err := Plan(ctx, reg, r.FetchLog, opts, summary.Started)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		summary.add(s)
	}

	extractSlots := make(chan struct{}, poolSize(opts.MaxConcurrentExtracts, DefaultMaxConcurrentExtracts))

	// Queue every endpoint in plan order and let a fixed pool of fetch
	// workers drain it, so fetch start order follows source priority
	// instead of goroutine scheduling.
	type task struct {
		def      *registry.Definition
		endpoint string
		rec      *EndpointRecord
	}
	results := make([]SourceResult, len(due))
	var queue []task
	for i := range due {
		def := &due[i]
		records := make([]EndpointRecord, len(def.Endpoints))
		for j, ep := range def.Endpoints {
			queue = append(queue, task{def: def, endpoint: ep, rec: &records[j]})
		}
		results[i] = SourceResult{SourceID: def.ID, Endpoints: records}
	}

	tasks := make(chan task)
	var wg sync.WaitGroup
	for w := 0; w < poolSize(opts.MaxConcurrentFetches, DefaultMaxConcurrentFetches); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				*t.rec = r.runEndpoint(ctx, t.def, t.endpoint, extractSlots)
			}
		}()
	}
	for _, t := range queue {
		tasks <- t
	}
	close(tasks)
	wg.Wait()

	for i := range results {
		res := &results[i]
		res.Outcome = aggregate(res.Endpoints)
		if res.Outcome == SourceSucceeded {
			if err := r.FetchLog.RecordFetch(ctx, res.SourceID, r.timeNow()); err != nil {
				log.Warn().Err(err).Str("source", res.SourceID).Msg("recording fetch time failed")
			}
		}
		summary.add(*res)
		log.Info().Str("source", res.SourceID).Str("outcome", string(res.Outcome)).
			Int("endpoints", len(res.Endpoints)).Msg("source finished")
	}

	summary.Finished = r.timeNow()
	return summary, nil
}

func (r *Runner) runEndpoint(ctx context.Context, def *registry.Definition, endpoint string, extractSlots chan struct{}) EndpointRecord {
	rec := EndpointRecord{Endpoint: endpoint}

	if err := ctx.Err(); err != nil {
		rec.ErrKind, rec.Err = ErrorFetch, err
		return rec
	}
	res, err := r.Fetcher.Fetch(ctx, def, endpoint)
	if err != nil {
		rec.ErrKind, rec.Err = ErrorFetch, err
		log.Warn().Err(err).Str("source", def.ID).Str("endpoint", endpoint).Msg("fetch failed")
		return rec
	}
	rec.Attempts = res.Attempts
	rec.Elapsed = res.Elapsed

	if err := acquire(ctx, extractSlots); err != nil {
		rec.ErrKind, rec.Err = ErrorExtract, err
		return rec
	}
	content, err := r.Extractor.Extract(ctx, def, endpoint, res)
	<-extractSlots
	if err != nil {
		rec.ErrKind, rec.Err = ErrorExtract, err
		log.Warn().Err(err).Str("source", def.ID).Str("endpoint", endpoint).Msg("extraction failed")
		return rec
	}
	rec.OCRUsed = content.OCRUsed
	rec.Links = content.Links

	outcome, err := r.Normalizer.Normalize(ctx, def, endpoint, content)
	if err != nil {
		rec.ErrKind, rec.Err = ErrorNormalize, err
		log.Warn().Err(err).Str("source", def.ID).Str("endpoint", endpoint).Msg("normalization failed")
		return rec
	}
	rec.Outcome = outcome.Kind
	rec.DocumentID = outcome.DocumentID
	rec.Version = outcome.Version
	return rec
}

func aggregate(records []EndpointRecord) SourceOutcome {
	failures := 0
	for _, rec := range records {
		if rec.Err != nil {
			failures++
		}
	}
	switch {
	case failures == 0:
		return SourceSucceeded
	case failures == len(records):
		return SourceFailed
	default:
		return SourcePartial
	}
}

func acquire(ctx context.Context, slots chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func poolSize(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
