package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/schedule"
)

const timeRound = 10 * time.Millisecond

// printSummary renders the per-source outcome table plus any document
// links discovered on index pages.
func printSummary(w io.Writer, s *schedule.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tOUTCOME\tNEW\tUPDATED\tUNCHANGED\tERRORS\tNOTE")
	for _, src := range s.Sources {
		var created, updated, unchanged, failed int
		for _, ep := range src.Endpoints {
			if ep.Err != nil {
				failed++
				continue
			}
			switch ep.Outcome {
			case normalize.OutcomeNew:
				created++
			case normalize.OutcomeUpdated:
				updated++
			case normalize.OutcomeUnchanged:
				unchanged++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			src.SourceID, src.Outcome, created, updated, unchanged, failed, src.Reason)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d succeeded, %d partial, %d failed, %d skipped; %d new, %d updated, %d unchanged documents in %s\n",
		s.Succeeded, s.Partial, s.Failed, s.Skipped,
		s.NewDocuments, s.UpdatedDocuments, s.Unchanged,
		s.Finished.Sub(s.Started).Round(timeRound))

	for _, src := range s.Sources {
		for _, ep := range src.Endpoints {
			if ep.Err != nil {
				fmt.Fprintf(w, "  %s %s: %s error: %v\n", src.SourceID, ep.Endpoint, ep.ErrKind, ep.Err)
			}
			for _, link := range ep.Links {
				fmt.Fprintf(w, "  %s %s: discovered %s\n", src.SourceID, ep.Endpoint, link)
			}
		}
	}
}
