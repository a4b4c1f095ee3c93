// Package normalize turns extracted content into canonical, content-addressed
// document records. A document's identity is derived from its source and
// endpoint; a new version exists if and only if the fingerprint of the
// normalized text changed.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/extract"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
)

// Document is one immutable version of an ingested endpoint.
type Document struct {
	DocumentID  string
	SourceID    string
	Endpoint    string
	Version     int
	Fingerprint string

	Text  string
	Title string

	Jurisdiction   string
	RegulationType string
	Tags           []string
	Region         string

	FetchedAt time.Time
	OCRUsed   bool
	Warnings  []string
}

// OutcomeKind classifies a normalization result.
type OutcomeKind string

const (
	OutcomeNew       OutcomeKind = "new"
	OutcomeUpdated   OutcomeKind = "updated"
	OutcomeUnchanged OutcomeKind = "unchanged"
)

// Outcome reports what normalization decided for one endpoint. Document is
// nil for Unchanged: nothing was written.
type Outcome struct {
	Kind       OutcomeKind
	DocumentID string
	Version    int
	Document   *Document
}

// Store is the slice of the storage collaborator the normalizer needs.
// Implementations must be safe for concurrent use.
type Store interface {
	// LastFingerprint returns the fingerprint of the newest stored version
	// of the document, or "" when the document has never been stored.
	LastFingerprint(ctx context.Context, documentID string) (string, error)
	// LastVersion returns the newest stored version number, 0 when none.
	LastVersion(ctx context.Context, documentID string) (int, error)
	WriteDocument(ctx context.Context, doc *Document) error
}

// docNamespace scopes name-based document UUIDs to this system.
var docNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("documents.compliance-copilot"))

// DocumentID derives the stable identity of the logical document behind
// (sourceID, endpoint). The same pair always yields the same ID.
func DocumentID(sourceID, endpoint string) string {
	return uuid.NewSHA1(docNamespace, []byte(sourceID+"\n"+endpoint)).String()
}

// Fingerprint computes the content address of normalized text.
func Fingerprint(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

// Text canonicalizes extracted text: NFC form, LF line endings, runs of
// spaces and tabs collapsed, line edges trimmed, at most one consecutive
// blank line. Letter case is preserved.
func Text(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}

// Normalizer builds document records and performs the fingerprint
// compare-and-write against the storage collaborator.
type Normalizer struct {
	Store Store

	locks docLocks
	now   func() time.Time
}

func (n *Normalizer) timeNow() time.Time {
	if n.now != nil {
		return n.now()
	}
	return time.Now().UTC()
}

// Normalize decides New/Updated/Unchanged for one extracted endpoint. The
// compare and the write run under a per-document lock so two concurrent
// runs cannot race to create duplicate versions.
func (n *Normalizer) Normalize(ctx context.Context, def *registry.Definition, endpoint string, content *extract.Content) (*Outcome, error) {
	docID := DocumentID(def.ID, endpoint)

	text := Text(content.Text)
	fp := Fingerprint(text)

	unlock := n.locks.lock(docID)
	defer unlock()

	last, err := n.Store.LastFingerprint(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("lookup fingerprint for %s: %w", docID, err)
	}
	if last == fp {
		version, err := n.Store.LastVersion(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("lookup version for %s: %w", docID, err)
		}
		log.Debug().Str("document", docID).Str("source", def.ID).Msg("content unchanged")
		return &Outcome{Kind: OutcomeUnchanged, DocumentID: docID, Version: version}, nil
	}

	kind := OutcomeNew
	version := 1
	if last != "" {
		kind = OutcomeUpdated
		lastVersion, err := n.Store.LastVersion(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("lookup version for %s: %w", docID, err)
		}
		version = lastVersion + 1
	}

	doc := &Document{
		DocumentID:     docID,
		SourceID:       def.ID,
		Endpoint:       endpoint,
		Version:        version,
		Fingerprint:    fp,
		Text:           text,
		Title:          content.Title,
		Jurisdiction:   def.Jurisdiction,
		RegulationType: def.RegulationType,
		Tags:           append([]string(nil), def.Tags...),
		Region:         def.Region,
		FetchedAt:      n.timeNow(),
		OCRUsed:        content.OCRUsed,
		Warnings:       append([]string(nil), content.Warnings...),
	}
	if err := n.Store.WriteDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("write document %s v%d: %w", docID, version, err)
	}
	log.Info().Str("document", docID).Str("source", def.ID).Str("endpoint", endpoint).
		Int("version", version).Str("outcome", string(kind)).Msg("document stored")
	return &Outcome{Kind: kind, DocumentID: docID, Version: version, Document: doc}, nil
}
