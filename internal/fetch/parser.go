// Package fetch retrieves and parses government feeds, one
// (source, language) URL at a time.
package fetch

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kaylam/govsignals/internal/model"
)

// parsedEntry is one feed entry before it is stamped with source
// identity and sanitized into a RawItem.
type parsedEntry struct {
	Title       string
	Body        string
	Link        string
	PublishedAt *time.Time
}

// parseFeed parses a fetched body. RSS and Atom go through gofeed; the
// bulletin XML dialect some departments publish is tried as a fallback.
// An unparseable body is an error, never a panic.
func parseFeed(body []byte) ([]parsedEntry, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err == nil {
		return convertGofeedItems(feed.Items), nil
	}

	entries, bulletinErr := parseBulletinXML(body)
	if bulletinErr == nil {
		return entries, nil
	}

	return nil, fmt.Errorf("%w: neither RSS/Atom (%v) nor bulletin XML (%v)", model.ErrUnparseableFeed, err, bulletinErr)
}

// convertGofeedItems maps gofeed items onto parsedEntry, tolerating the
// usual missing optional fields.
func convertGofeedItems(items []*gofeed.Item) []parsedEntry {
	entries := make([]parsedEntry, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		entry := parsedEntry{
			Title: item.Title,
			Body:  item.Content,
			Link:  item.Link,
		}

		if entry.Body == "" && item.Description != "" {
			entry.Body = item.Description
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			entry.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			entry.PublishedAt = &t
		}

		// Some feeds carry the link only in a URL-shaped GUID.
		if entry.Link == "" && item.GUID != "" &&
			(strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			entry.Link = item.GUID
		}

		entries = append(entries, entry)
	}

	return entries
}

// bulletinDoc is the custom XML shape used by departmental bulletin
// pages: a flat list of messages with a localized date string.
type bulletinDoc struct {
	XMLName  xml.Name          `xml:"messages"`
	Messages []bulletinMessage `xml:"message"`
}

type bulletinMessage struct {
	Title   string `xml:"title"`
	Content string `xml:"content"`
	Link    string `xml:"link"`
	Date    string `xml:"date"`
}

// bulletinDateLayouts lists the date formats observed across bulletin
// feeds. Dates are local Hong Kong time without an offset.
var bulletinDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	time.RFC3339,
}

var hongKong = time.FixedZone("HKT", 8*60*60)

func parseBulletinXML(body []byte) ([]parsedEntry, error) {
	var doc bulletinDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse bulletin XML: %w", err)
	}
	if len(doc.Messages) == 0 {
		return nil, fmt.Errorf("bulletin XML has no messages")
	}

	entries := make([]parsedEntry, 0, len(doc.Messages))
	for _, msg := range doc.Messages {
		entry := parsedEntry{
			Title: strings.TrimSpace(msg.Title),
			Body:  strings.TrimSpace(msg.Content),
			Link:  strings.TrimSpace(msg.Link),
		}
		if t, ok := parseBulletinDate(msg.Date); ok {
			entry.PublishedAt = &t
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseBulletinDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range bulletinDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, hongKong); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stamp turns parsed entries into RawItems for one source and language.
// Entries with neither title nor body are dropped. Entries without a
// publish time keep the zero value: identity must depend only on the
// upstream data, never on when a run happened to fetch it.
func stamp(entries []parsedEntry, source *model.FeedSource, lang model.Language, sanitize func(string) string) []model.RawItem {
	items := make([]model.RawItem, 0, len(entries))

	for _, entry := range entries {
		title := strings.TrimSpace(entry.Title)
		body := sanitize(entry.Body)
		if title == "" && body == "" {
			continue
		}

		var publishedAt time.Time
		if entry.PublishedAt != nil {
			publishedAt = *entry.PublishedAt
		}

		items = append(items, model.RawItem{
			SourceID:    source.ID,
			SourceSlug:  source.Slug,
			Category:    source.Category,
			Language:    lang,
			Title:       title,
			Body:        body,
			Link:        entry.Link,
			PublishedAt: publishedAt,
		})
	}

	return items
}
