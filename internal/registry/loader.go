package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields a region file leaves unset. Mirrors the
// conservative request policy the sources were originally tuned with.
const (
	DefaultTimeoutSeconds    = 30
	DefaultMaxRetries        = 3
	DefaultRetryDelaySeconds = 1.0
	DefaultFrequency         = Weekly
)

// regionFile is the on-disk schema of one region-partitioned source file.
type regionFile struct {
	Region  string       `yaml:"region"`
	Sources []Definition `yaml:"sources"`
}

// UnmarshalYAML decodes into a definition pre-seeded with the request
// policy defaults, so only absent keys pick them up. An explicit zero
// (no retries, no timeout) stays zero.
func (d *Definition) UnmarshalYAML(value *yaml.Node) error {
	type plain Definition
	p := plain{
		RequestTimeoutSeconds: DefaultTimeoutSeconds,
		MaxRetries:            DefaultMaxRetries,
		RetryDelaySeconds:     DefaultRetryDelaySeconds,
		FetchFrequency:        DefaultFrequency,
	}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = Definition(p)
	return nil
}

// Load reads every region file (*.yaml, *.yml) directly under dir, merges
// them into one Registry, and validates the result. Any schema violation
// aborts the load; the returned error names every failing source id.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sources dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no region files found in %s", dir)
	}

	var defs []Definition
	var problems []string
	seen := make(map[string]string) // id -> region file it came from

	for _, name := range files {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read region file %s: %w", name, err)
		}
		var rf regionFile
		if err := yaml.Unmarshal(raw, &rf); err != nil {
			return nil, fmt.Errorf("parse region file %s: %w", name, err)
		}
		region := rf.Region
		if region == "" {
			region = strings.TrimSuffix(name, filepath.Ext(name))
		}

		for _, d := range rf.Sources {
			if d.Region == "" {
				d.Region = region
			}
			if err := d.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("%s (%s)", err, name))
				continue
			}
			if prev, dup := seen[d.ID]; dup {
				problems = append(problems, fmt.Sprintf("source %q: duplicate id (%s and %s)", d.ID, prev, name))
				continue
			}
			seen[d.ID] = name
			defs = append(defs, d)
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid source definitions:\n  %s", strings.Join(problems, "\n  "))
	}

	log.Debug().Int("sources", len(defs)).Int("regions", len(files)).Str("dir", dir).
		Msg("loaded source registry")
	return newRegistry(defs), nil
}
