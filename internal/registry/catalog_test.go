package registry

import (
	"strings"
	"testing"

	"github.com/kaylam/govsignals/internal/model"
)

const sampleCatalog = `
sources:
  - slug: td-traffic
    department: Transport Department
    category: traffic
    urls:
      en: https://www.td.gov.hk/en/special_news/trafficnews.xml
      zh-TW: https://www.td.gov.hk/tc/special_news/trafficnews.xml
      zh-CN: https://www.td.gov.hk/sc/special_news/trafficnews.xml
  - slug: hko-warnings
    department: Hong Kong Observatory
    category: weather
    active: false
    urls:
      en: https://rss.weather.gov.hk/rss/WeatherWarningSummaryv2.xml
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog error: %v", err)
	}

	if len(catalog.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(catalog.Sources))
	}

	td := catalog.Sources[0]
	if td.Slug != "td-traffic" || td.Category != "traffic" {
		t.Errorf("unexpected first entry: %+v", td)
	}
	if !td.IsActive() {
		t.Error("active should default to true")
	}
	if len(td.URLs) != 3 {
		t.Errorf("td-traffic should have 3 URLs, got %d", len(td.URLs))
	}

	hko := catalog.Sources[1]
	if hko.IsActive() {
		t.Error("hko-warnings is explicitly inactive")
	}

	urls := td.LanguageURLs()
	if urls[model.LangZHTW] != "https://www.td.gov.hk/tc/special_news/trafficnews.xml" {
		t.Errorf("zh-TW URL = %q", urls[model.LangZHTW])
	}
}

func TestParseCatalogRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			"missing slug",
			"sources:\n  - department: X\n    urls:\n      en: https://x.example/feed.xml\n",
			"no slug",
		},
		{
			"duplicate slug",
			"sources:\n  - slug: a\n    urls:\n      en: https://x.example/a.xml\n  - slug: a\n    urls:\n      en: https://x.example/b.xml\n",
			"duplicate",
		},
		{
			"no urls",
			"sources:\n  - slug: a\n",
			"no URLs",
		},
		{
			"unknown language",
			"sources:\n  - slug: a\n    urls:\n      fr: https://x.example/a.xml\n",
			"unknown language",
		},
		{
			"not yaml",
			"{{{",
			"parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
