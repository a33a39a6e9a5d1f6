package model

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from EnrichmentStatus
		to   EnrichmentStatus
		want bool
	}{
		{"pending to enriched", EnrichmentPending, EnrichmentEnriched, true},
		{"pending to failed", EnrichmentPending, EnrichmentFailed, true},
		{"pending to ready skips enrichment", EnrichmentPending, EnrichmentReady, false},
		{"enriched to ready", EnrichmentEnriched, EnrichmentReady, true},
		{"enriched to failed", EnrichmentEnriched, EnrichmentFailed, true},
		{"enriched back to pending", EnrichmentEnriched, EnrichmentPending, false},
		{"ready is terminal", EnrichmentReady, EnrichmentFailed, false},
		{"failed is terminal", EnrichmentFailed, EnrichmentEnriched, false},
		{"unknown status", EnrichmentStatus("archived"), EnrichmentReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
