package registry

import (
	"fmt"
	"strings"
)

// SourceType selects the extraction strategy for a source.
type SourceType string

const (
	StaticPDF       SourceType = "static_pdf"
	StaticHTML      SourceType = "static_html"
	WebScraper      SourceType = "web_scraper"
	DocumentLibrary SourceType = "document_library"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case StaticPDF, StaticHTML, WebScraper, DocumentLibrary:
		return true
	}
	return false
}

// IsIndex reports whether pages of this type are treated as document
// indexes whose in-page links are surfaced for operators.
func (t SourceType) IsIndex() bool {
	return t == WebScraper || t == DocumentLibrary
}

// FetchMethod selects the fetch strategy for a source.
type FetchMethod string

const (
	DirectDownload FetchMethod = "direct_download"
	WebScraping    FetchMethod = "web_scraping"
)

// Valid reports whether m is a known fetch method.
func (m FetchMethod) Valid() bool {
	return m == DirectDownload || m == WebScraping
}

// Frequency is the minimum interval between fetches of a source.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	// OnDemand sources are only fetched when explicitly selected.
	OnDemand Frequency = "on_demand"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Quarterly, OnDemand:
		return true
	}
	return false
}

// Definition is one declared external source of compliance documents.
// Definitions are immutable after loading.
type Definition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	SourceType  SourceType  `yaml:"sourceType"`
	FetchMethod FetchMethod `yaml:"fetchMethod"`

	BaseURL   string            `yaml:"baseUrl"`
	Endpoints []string          `yaml:"endpoints"`
	Headers   map[string]string `yaml:"headers"`

	RequestTimeoutSeconds int     `yaml:"requestTimeoutSeconds"`
	MaxRetries            int     `yaml:"maxRetries"`
	RetryDelaySeconds     float64 `yaml:"retryDelaySeconds"`

	FetchFrequency Frequency `yaml:"fetchFrequency"`

	Jurisdiction   string   `yaml:"jurisdiction"`
	RegulationType string   `yaml:"regulationType"`
	Tags           []string `yaml:"tags"`
	Priority       int      `yaml:"priority"`

	// Region is stamped from the region file the definition was loaded
	// from when the file does not set it explicitly.
	Region string `yaml:"region"`

	IsActive bool `yaml:"isActive"`
}

// EndpointURL joins the base URL with one relative endpoint path.
func (d *Definition) EndpointURL(endpoint string) string {
	base := strings.TrimRight(d.BaseURL, "/")
	if endpoint == "" {
		return base
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}

// HasTag reports whether the definition carries the given tag.
func (d *Definition) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Validate checks the invariants a single definition must satisfy.
// It returns all violations, not just the first.
func (d *Definition) Validate() error {
	var problems []string
	if strings.TrimSpace(d.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !d.SourceType.Valid() {
		problems = append(problems, fmt.Sprintf("unknown sourceType %q", d.SourceType))
	}
	if !d.FetchMethod.Valid() {
		problems = append(problems, fmt.Sprintf("unknown fetchMethod %q", d.FetchMethod))
	}
	if !d.FetchFrequency.Valid() {
		problems = append(problems, fmt.Sprintf("unknown fetchFrequency %q", d.FetchFrequency))
	}
	if strings.TrimSpace(d.BaseURL) == "" {
		problems = append(problems, "baseUrl is required")
	} else if !strings.HasPrefix(d.BaseURL, "http://") && !strings.HasPrefix(d.BaseURL, "https://") {
		problems = append(problems, fmt.Sprintf("baseUrl %q is not an http(s) URL", d.BaseURL))
	}
	if len(d.Endpoints) == 0 {
		problems = append(problems, "endpoints must not be empty")
	}
	if d.Priority < 0 {
		problems = append(problems, fmt.Sprintf("priority %d must be >= 0", d.Priority))
	}
	if d.RequestTimeoutSeconds < 0 {
		problems = append(problems, "requestTimeoutSeconds must be >= 0")
	}
	if d.MaxRetries < 0 {
		problems = append(problems, "maxRetries must be >= 0")
	}
	if d.RetryDelaySeconds < 0 {
		problems = append(problems, "retryDelaySeconds must be >= 0")
	}
	// Index-style extraction only makes sense on scraped pages; a direct
	// download of a PDF cannot be treated as a link index.
	if d.SourceType.IsIndex() && d.FetchMethod.Valid() && d.FetchMethod != WebScraping {
		problems = append(problems, fmt.Sprintf("sourceType %q requires fetchMethod %q", d.SourceType, WebScraping))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("source %q: %s", d.ID, strings.Join(problems, "; "))
}
