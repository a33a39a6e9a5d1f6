// Package score assigns severity and relevance to merged signal content.
//
// Scoring is heuristic and allowed to be approximate, but it must be
// deterministic for a given content snapshot and reference time, and it
// must never fail on malformed or empty content.
package score

import (
	"math"
	"strings"
	"time"

	"github.com/kaylam/govsignals/internal/htmltext"
	"github.com/kaylam/govsignals/internal/model"
)

const (
	// MinSeverity and MaxSeverity bound the integer severity scale.
	MinSeverity = 1
	MaxSeverity = 5

	// recencyHalfLife controls the exponential decay of relevance with
	// age: a signal this old scores half the recency weight.
	recencyHalfLife = 72 * time.Hour
)

// categoryBase maps feed categories to a baseline severity.
var categoryBase = map[string]int{
	"emergency": 4,
	"weather":   3,
	"transport": 3,
	"health":    3,
	"traffic":   2,
	"general":   1,
}

// severityKeywords bumps severity when merged content mentions any of
// the listed terms. English terms are matched on word content, Chinese
// terms by substring. Each tier is applied at most once.
var severityKeywords = []struct {
	terms []string
	bump  int
}{
	{terms: []string{"typhoon", "evacuate", "evacuation", "explosion", "颱風", "疏散", "爆炸"}, bump: 2},
	{terms: []string{"suspended", "suspension", "closure", "closed", "fire", "flooding", "暫停", "封閉", "火警", "水浸"}, bump: 1},
}

// Score computes severity and relevance for a signal's merged content at
// the given reference time. Empty content degrades to the minimum
// severity and a recency-only relevance rather than failing.
func Score(content map[model.Language]model.LocalizedContent, category string, publishedAt time.Time, now time.Time) (int, float64) {
	severity := severityOf(content, category)
	relevance := relevanceOf(severity, publishedAt, now)
	return severity, relevance
}

func severityOf(content map[model.Language]model.LocalizedContent, category string) int {
	severity := MinSeverity
	if base, ok := categoryBase[strings.ToLower(category)]; ok {
		severity = base
	}

	text := flatten(content)
	for _, tier := range severityKeywords {
		if containsAny(text, tier.terms) {
			severity += tier.bump
		}
	}

	if severity > MaxSeverity {
		severity = MaxSeverity
	}
	if severity < MinSeverity {
		severity = MinSeverity
	}
	return severity
}

// relevanceOf combines the normalized severity with recency decay into a
// score in [0, 1]. A zero publish time counts as maximally stale.
func relevanceOf(severity int, publishedAt, now time.Time) float64 {
	severityWeight := float64(severity-MinSeverity) / float64(MaxSeverity-MinSeverity)

	recency := 0.0
	if !publishedAt.IsZero() {
		age := now.Sub(publishedAt)
		if age < 0 {
			age = 0
		}
		recency = math.Exp2(-age.Hours() / recencyHalfLife.Hours())
	}

	relevance := 0.4*severityWeight + 0.6*recency
	if relevance > 1 {
		relevance = 1
	}
	if relevance < 0 {
		relevance = 0
	}
	return relevance
}

// flatten joins the lowercased plain text of every language's title and
// body. Iteration over the stable language order keeps output
// deterministic, though keyword matching does not depend on order.
func flatten(content map[model.Language]model.LocalizedContent) string {
	var b strings.Builder
	for _, lang := range model.Languages {
		c, ok := content[lang]
		if !ok {
			continue
		}
		b.WriteString(strings.ToLower(c.Title))
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(htmltext.Extract(c.Body)))
		b.WriteByte(' ')
	}
	return b.String()
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
