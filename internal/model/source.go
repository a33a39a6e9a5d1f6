// Package model defines the domain model.
package model

import "time"

// Language identifies one of the publication languages a government feed
// family may carry. Not every source publishes all three.
type Language string

const (
	// LangEN is English.
	LangEN Language = "en"
	// LangZHTW is Traditional Chinese.
	LangZHTW Language = "zh-TW"
	// LangZHCN is Simplified Chinese.
	LangZHCN Language = "zh-CN"
)

// Languages lists the supported languages in a stable order.
var Languages = []Language{LangEN, LangZHTW, LangZHCN}

// ValidLanguage reports whether l is one of the supported languages.
func ValidLanguage(l Language) bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// FeedSource is one government feed family: the same bulletin stream
// published under up to three language URLs.
type FeedSource struct {
	ID           string
	Slug         string
	Department   string
	Category     string
	LanguageURLs map[Language]string
	Active       bool
	// Cursors holds the last successful fetch time per language.
	// A language with no successful fetch yet has no entry.
	Cursors   map[Language]time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// URLFor returns the configured URL for a language, or "" if the source
// does not publish in that language.
func (s *FeedSource) URLFor(lang Language) string {
	if s.LanguageURLs == nil {
		return ""
	}
	return s.LanguageURLs[lang]
}

// CursorFor returns the last successful fetch time for a language and
// whether one has been recorded.
func (s *FeedSource) CursorFor(lang Language) (time.Time, bool) {
	if s.Cursors == nil {
		return time.Time{}, false
	}
	t, ok := s.Cursors[lang]
	return t, ok
}

// RawItem is one entry parsed out of one feed fetch in one language.
// Raw items live only inside a pipeline run and are never persisted.
type RawItem struct {
	SourceID    string
	SourceSlug  string
	Category    string
	Language    Language
	Title       string
	Body        string
	Link        string
	PublishedAt time.Time
}
