package identity

import (
	"testing"
	"time"

	"github.com/kaylam/govsignals/internal/model"
)

var testTime = time.Date(2025, 6, 14, 8, 30, 0, 0, time.UTC)

func rawItem(sourceID, title string, lang model.Language, at time.Time) model.RawItem {
	return model.RawItem{
		SourceID:    sourceID,
		Language:    lang,
		Title:       title,
		Body:        "body",
		PublishedAt: at,
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "MTR Service Suspended", "mtr service suspended"},
		{"punctuation stripped", "mtr service suspended due to fire!!", "mtr service suspended due to fire"},
		{"whitespace collapsed", "  Road\t Closure \n on Route 3 ", "road closure on route 3"},
		{"fullwidth punctuation", "三號幹線封閉！（緊急）", "三號幹線封閉緊急"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// The grouping-correctness property: same source, same minute bucket and
// titles that normalize identically must share a key; a different source
// with the identical title must not.
func TestKeyForGroupsNormalizedVariants(t *testing.T) {
	a := KeyFor(rawItem("src-1", "MTR Service Suspended Due To Fire", model.LangEN, testTime))
	b := KeyFor(rawItem("src-1", "mtr service suspended due to fire!!", model.LangEN, testTime.Add(20*time.Second)))
	c := KeyFor(rawItem("src-2", "MTR Service Suspended Due To Fire", model.LangEN, testTime))

	if a.SignalID() != b.SignalID() {
		t.Errorf("normalized variants should share a signal ID: %s vs %s", a.SignalID(), b.SignalID())
	}
	if a.SignalID() == c.SignalID() {
		t.Error("different sources must not share a signal ID")
	}
}

// Cross-language variants of one bulletin carry the same publish time,
// so they share a key even though the titles differ entirely.
func TestKeyForJoinsLanguages(t *testing.T) {
	en := KeyFor(rawItem("src-1", "Road Closure on Route 3", model.LangEN, testTime))
	zh := KeyFor(rawItem("src-1", "三號幹線封閉緊急交通安排", model.LangZHTW, testTime))

	if en.SignalID() != zh.SignalID() {
		t.Errorf("same-bucket language variants should share a signal ID: %s vs %s", en.SignalID(), zh.SignalID())
	}
}

func TestKeyForBucketsByMinute(t *testing.T) {
	a := KeyFor(rawItem("src-1", "Typhoon Signal No. 8 Issued", model.LangEN, testTime))
	sameMinute := KeyFor(rawItem("src-1", "Typhoon Signal No. 8 Issued", model.LangEN, testTime.Add(45*time.Second)))
	nextMinute := KeyFor(rawItem("src-1", "Typhoon Signal No. 8 Issued", model.LangEN, testTime.Add(90*time.Second)))

	if a.SignalID() != sameMinute.SignalID() {
		t.Error("items within the same minute bucket should share a signal ID")
	}
	if a.SignalID() == nextMinute.SignalID() {
		t.Error("items in different minute buckets must not share a signal ID")
	}
}

func TestKeyForShortTitleFallsBackPerLanguage(t *testing.T) {
	en := KeyFor(rawItem("src-1", "Alert", model.LangEN, testTime))
	zh := KeyFor(rawItem("src-1", "警示", model.LangZHTW, testTime))

	if en.Language == "" || zh.Language == "" {
		t.Error("short titles should take the per-language fallback key")
	}
	if en.SignalID() == zh.SignalID() {
		t.Error("fallback keys must separate languages")
	}

	// A short-titled item never joins the bucket's shared signal.
	long := KeyFor(rawItem("src-1", "Typhoon Signal No. 8 Issued", model.LangEN, testTime))
	if en.SignalID() == long.SignalID() {
		t.Error("fallback key must not collide with the shared bucket key")
	}

	// Deterministic: repeating the derivation yields the same ID.
	again := KeyFor(rawItem("src-1", "Alert", model.LangEN, testTime))
	if en.SignalID() != again.SignalID() {
		t.Error("fallback key derivation is not deterministic")
	}
}

// Feeds that omit pubDate must still converge on one signal across
// runs: the key comes from the item link, never from fetch timing.
func TestKeyForDatelessItemKeysOnLink(t *testing.T) {
	dateless := func(link string) model.RawItem {
		item := rawItem("src-1", "Lane reopened on Route 3", model.LangEN, time.Time{})
		item.Link = link
		return item
	}

	first := KeyFor(dateless("https://www.td.gov.hk/en/notice/124"))
	refetched := KeyFor(dateless("https://www.td.gov.hk/en/notice/124"))
	other := KeyFor(dateless("https://www.td.gov.hk/en/notice/125"))

	if first.SignalID() != refetched.SignalID() {
		t.Errorf("refetching a dateless item minted a new signal: %s vs %s", first.SignalID(), refetched.SignalID())
	}
	if first.SignalID() == other.SignalID() {
		t.Error("dateless items with different links must not share a signal ID")
	}
	if first.Language == "" {
		t.Error("dateless keys should stay per-language")
	}
}

// Without a link either, the normalized title carries the identity.
func TestKeyForDatelessItemWithoutLink(t *testing.T) {
	a := KeyFor(rawItem("src-1", "Lane Reopened on Route 3", model.LangEN, time.Time{}))
	b := KeyFor(rawItem("src-1", "lane reopened on route 3!", model.LangEN, time.Time{}))
	c := KeyFor(rawItem("src-1", "Water Main Burst in Kowloon", model.LangEN, time.Time{}))

	if a.SignalID() != b.SignalID() {
		t.Errorf("title-normalized dateless variants should share a signal ID: %s vs %s", a.SignalID(), b.SignalID())
	}
	if a.SignalID() == c.SignalID() {
		t.Error("dateless items with different titles must not share a signal ID")
	}
}

func TestSignalIDIsStable(t *testing.T) {
	key := KeyFor(rawItem("src-1", "Road Closure on Route 3", model.LangEN, testTime))
	id1 := key.SignalID()
	id2 := KeyFor(rawItem("src-1", "Road Closure on Route 3", model.LangEN, testTime)).SignalID()
	if id1 != id2 {
		t.Errorf("signal ID drifted: %s vs %s", id1, id2)
	}
}

func TestGroup(t *testing.T) {
	items := []model.RawItem{
		rawItem("src-1", "Road Closure on Route 3", model.LangEN, testTime),
		rawItem("src-1", "三號幹線封閉緊急交通安排", model.LangZHTW, testTime),
		rawItem("src-1", "Water Main Burst in Kowloon", model.LangEN, testTime.Add(5*time.Minute)),
		rawItem("src-2", "Road Closure on Route 3", model.LangEN, testTime),
	}

	groups := Group(items)

	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	if len(groups[0].Items) != 2 {
		t.Errorf("first group should hold both language variants, got %d items", len(groups[0].Items))
	}

	// Deterministic signal IDs regardless of input order.
	reversed := []model.RawItem{items[3], items[2], items[1], items[0]}
	regrouped := Group(reversed)

	ids := map[string]bool{}
	for _, g := range groups {
		ids[g.SignalID] = true
	}
	for _, g := range regrouped {
		if !ids[g.SignalID] {
			t.Errorf("signal ID %s not stable across input orderings", g.SignalID)
		}
	}
}
