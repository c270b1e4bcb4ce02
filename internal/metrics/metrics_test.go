package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHelpersCountAfterInit(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(journalEntries.WithLabelValues("note"))
	IncJournalEntry("note")
	IncJournalEntry("note")
	if got := testutil.ToFloat64(journalEntries.WithLabelValues("note")); got != before+2 {
		t.Fatalf("expected %v note entries, got %v", before+2, got)
	}

	IncJournalEntry("")
	if got := testutil.ToFloat64(journalEntries.WithLabelValues("unknown")); got < 1 {
		t.Fatalf("expected empty entry type to be counted as unknown")
	}

	IncGeocodeLookup(GeocodeFailed)
	if got := testutil.ToFloat64(geocodeLookups.WithLabelValues(GeocodeFailed)); got < 1 {
		t.Fatalf("expected geocode failure to be counted")
	}
}
