// Package registry manages the feed source catalog: a YAML file that is
// the source of truth for feed identity, synced into the feed_sources
// table so the pipeline can track per-language fetch cursors on it.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kaylam/govsignals/internal/model"
)

// Catalog is the parsed feed catalog file.
type Catalog struct {
	Sources []SourceEntry `yaml:"sources"`
}

// SourceEntry describes one feed family in the catalog.
type SourceEntry struct {
	Slug       string            `yaml:"slug"`
	Department string            `yaml:"department"`
	Category   string            `yaml:"category"`
	Active     *bool             `yaml:"active"`
	URLs       map[string]string `yaml:"urls"`
}

// IsActive defaults to true when the field is omitted.
func (e SourceEntry) IsActive() bool {
	return e.Active == nil || *e.Active
}

// LoadCatalog reads and validates the catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	seen := make(map[string]bool)
	for i, entry := range catalog.Sources {
		if entry.Slug == "" {
			return nil, fmt.Errorf("catalog source %d has no slug", i)
		}
		if seen[entry.Slug] {
			return nil, fmt.Errorf("duplicate catalog slug: %s", entry.Slug)
		}
		seen[entry.Slug] = true

		if len(entry.URLs) == 0 {
			return nil, fmt.Errorf("catalog source %s has no URLs", entry.Slug)
		}
		for lang := range entry.URLs {
			if !model.ValidLanguage(model.Language(lang)) {
				return nil, fmt.Errorf("catalog source %s has unknown language %q", entry.Slug, lang)
			}
		}
	}

	return &catalog, nil
}

// LanguageURLs converts an entry's URL map onto the typed language keys.
func (e SourceEntry) LanguageURLs() map[model.Language]string {
	urls := make(map[model.Language]string, len(e.URLs))
	for lang, u := range e.URLs {
		urls[model.Language(lang)] = u
	}
	return urls
}
