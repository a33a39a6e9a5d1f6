// Package merge folds per-language raw items into a signal's content map.
//
// Merging is a pure function with two rules: a language already present
// is only replaced by more complete content (longer body) for that same
// language, and a recorded language is never removed, even when a later
// run fails to fetch it. Both rules make the merge commutative, which is
// what lets overlapping runs re-process the same feed safely.
package merge

import (
	"time"

	"github.com/kaylam/govsignals/internal/model"
)

// Content merges a group of raw items for one identity into the existing
// content map (nil for a new signal) and returns the updated map together
// with the earliest known publish time. The input map is not mutated.
func Content(existing map[model.Language]model.LocalizedContent, existingPublishedAt time.Time, items []model.RawItem) (map[model.Language]model.LocalizedContent, time.Time) {
	merged := make(map[model.Language]model.LocalizedContent, len(existing)+len(items))
	for lang, c := range existing {
		merged[lang] = c
	}

	earliest := existingPublishedAt
	for _, item := range items {
		if !model.ValidLanguage(item.Language) {
			continue
		}

		candidate := model.LocalizedContent{
			Title: item.Title,
			Body:  item.Body,
			Link:  item.Link,
		}

		current, ok := merged[item.Language]
		if !ok || len(candidate.Body) > len(current.Body) {
			merged[item.Language] = candidate
		}

		if !item.PublishedAt.IsZero() && (earliest.IsZero() || item.PublishedAt.Before(earliest)) {
			earliest = item.PublishedAt
		}
	}

	return merged, earliest
}
