// Package identity derives stable identity keys for raw feed items and
// groups items that describe the same real-world event into one signal.
//
// The key is (source, publish-time bucket). Cross-language variants of
// one bulletin are published at the same minute by the same feed family,
// so they land in the same bucket and merge into one signal. Items whose
// normalized titles are too short to indicate a real bulletin fall back
// to a per-language key, trading occasional per-language duplicates for
// never merging unrelated low-quality items. Items without a publish
// time key on their link instead, so refetching them never mints a new
// signal.
package identity

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/kaylam/govsignals/internal/model"
)

// signalNamespace is the fixed UUIDv5 namespace for signal IDs. Changing
// it would re-key every stored signal.
var signalNamespace = uuid.MustParse("9f2c1a4e-7b3d-4f60-9a81-5c2e8d0b6f17")

// minTitleRunes is the shortest normalized title considered safe to
// group across languages.
const minTitleRunes = 6

// Key is the deterministic identity of one signal. It is a pure function
// of a single raw item, so derivation is order-independent and repeated
// runs converge on the same IDs.
type Key struct {
	SourceID string
	Bucket   time.Time
	// Ref replaces the bucket for items that carry no publish time. It
	// is the item link when present, the normalized title otherwise.
	Ref string
	// Language is set only on fallback keys for short-titled or
	// dateless items.
	Language model.Language
}

// String renders the key in its canonical pipe-joined form.
func (k Key) String() string {
	stamp := k.Bucket.UTC().Format(time.RFC3339)
	if k.Ref != "" {
		stamp = "ref:" + k.Ref
	}
	if k.Language != "" {
		return fmt.Sprintf("%s|%s|lang:%s", k.SourceID, stamp, k.Language)
	}
	return fmt.Sprintf("%s|%s", k.SourceID, stamp)
}

// SignalID derives the deterministic signal ID for the key. Repeated runs
// over the same upstream data always converge on the same ID.
func (k Key) SignalID() string {
	return uuid.NewSHA1(signalNamespace, []byte(k.String())).String()
}

// KeyFor computes the identity key for one raw item.
func KeyFor(item model.RawItem) Key {
	normalized := NormalizeTitle(item.Title)

	// Dateless items cannot bucket by time, so they key on the link
	// (or the normalized title when the feed omits links too). The key
	// stays per-language: without a shared minute there is no safe way
	// to tell cross-language variants from unrelated items.
	if item.PublishedAt.IsZero() {
		ref := item.Link
		if ref == "" {
			ref = normalized
		}
		return Key{
			SourceID: item.SourceID,
			Ref:      ref,
			Language: item.Language,
		}
	}

	bucket := item.PublishedAt.UTC().Truncate(time.Minute)
	if len([]rune(normalized)) < minTitleRunes {
		return Key{
			SourceID: item.SourceID,
			Bucket:   bucket,
			Language: item.Language,
		}
	}

	return Key{
		SourceID: item.SourceID,
		Bucket:   bucket,
	}
}

// Group collapses raw items into identity groups. Output order follows
// the first appearance of each key, so grouping is deterministic for a
// given input order, and the derived signal IDs are order-independent.
func Group(items []model.RawItem) []GroupedItems {
	var groups []GroupedItems
	index := make(map[string]int)

	for _, item := range items {
		key := KeyFor(item)
		id := key.SignalID()
		if i, ok := index[id]; ok {
			groups[i].Items = append(groups[i].Items, item)
			continue
		}
		index[id] = len(groups)
		groups = append(groups, GroupedItems{Key: key, SignalID: id, Items: []model.RawItem{item}})
	}

	return groups
}

// GroupedItems is one identity group: all raw items from one run that
// belong to the same signal.
type GroupedItems struct {
	Key      Key
	SignalID string
	Items    []model.RawItem
}

// NormalizeTitle case-folds the title, strips punctuation and symbols and
// collapses whitespace. CJK titles carry no spaces, so collapsing is a
// no-op there; punctuation stripping still applies (full-width included).
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	for _, r := range title {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
