package schedule

import (
	"time"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
)

// ErrorKind names the pipeline stage an endpoint failed in.
type ErrorKind string

const (
	ErrorFetch     ErrorKind = "fetch"
	ErrorExtract   ErrorKind = "extract"
	ErrorNormalize ErrorKind = "normalize"
)

// SourceOutcome classifies one source's pass over all its endpoints.
type SourceOutcome string

const (
	SourceSucceeded SourceOutcome = "succeeded"
	SourcePartial   SourceOutcome = "partial"
	SourceFailed    SourceOutcome = "failed"
	SourceSkipped   SourceOutcome = "skipped"
)

// EndpointRecord is the outcome of the pipeline for one endpoint.
type EndpointRecord struct {
	Endpoint string

	// Outcome is set when the endpoint completed; Err is set when it did
	// not. Exactly one of the two is meaningful.
	Outcome    normalize.OutcomeKind
	DocumentID string
	Version    int

	ErrKind ErrorKind
	Err     error

	Attempts int
	Elapsed  time.Duration
	OCRUsed  bool

	// Links are candidate documents discovered on index pages. They are
	// reported for operators, never fetched or registered.
	Links []string
}

// SourceResult aggregates the endpoint records of one source.
type SourceResult struct {
	SourceID string
	Outcome  SourceOutcome
	// Reason explains a skip; empty otherwise.
	Reason    string
	Endpoints []EndpointRecord
}

// Summary is the report of one ingestion run.
type Summary struct {
	Started  time.Time
	Finished time.Time

	Sources []SourceResult

	Succeeded int
	Partial   int
	Failed    int
	Skipped   int

	NewDocuments     int
	UpdatedDocuments int
	Unchanged        int
	EndpointErrors   int
}

// FullyFailed reports whether any source failed on every endpoint.
func (s *Summary) FullyFailed() bool { return s.Failed > 0 }

func (s *Summary) add(res SourceResult) {
	s.Sources = append(s.Sources, res)
	switch res.Outcome {
	case SourceSucceeded:
		s.Succeeded++
	case SourcePartial:
		s.Partial++
	case SourceFailed:
		s.Failed++
	case SourceSkipped:
		s.Skipped++
	}
	for _, ep := range res.Endpoints {
		if ep.Err != nil {
			s.EndpointErrors++
			continue
		}
		switch ep.Outcome {
		case normalize.OutcomeNew:
			s.NewDocuments++
		case normalize.OutcomeUpdated:
			s.UpdatedDocuments++
		case normalize.OutcomeUnchanged:
			s.Unchanged++
		}
	}
}
