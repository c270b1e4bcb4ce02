package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "dispatch_"

	GeocodeFound    = "found"
	GeocodeNotFound = "not_found"
	GeocodeFailed   = "error"

	OperationCreated = "created"
	OperationClosed  = "closed"
)

var (
	registerOnce sync.Once

	journalEntries        *prometheus.CounterVec
	assignmentTransitions *prometheus.CounterVec
	geocodeLookups        *prometheus.CounterVec
	operationEvents       *prometheus.CounterVec
	journalExports        *prometheus.CounterVec
)

// Init registers the dispatch counters with the default registry. Helpers are
// no-ops until Init has run.
func Init() {
	registerOnce.Do(func() {
		journalEntries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "journal_entries_total",
				Help: "Journal entries written by entry type",
			},
			[]string{"entry_type"},
		)
		assignmentTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "assignment_transitions_total",
				Help: "Assignment status transitions by target status",
			},
			[]string{"to"},
		)
		geocodeLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "geocode_lookups_total",
				Help: "Geocoder lookups by result",
			},
			[]string{"result"},
		)
		operationEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Operation lifecycle events",
			},
			[]string{"event"},
		)
		journalExports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "journal_exports_total",
				Help: "Journal exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			journalEntries,
			assignmentTransitions,
			geocodeLookups,
			operationEvents,
			journalExports,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncJournalEntry(entryType string) {
	if entryType == "" {
		entryType = "unknown"
	}
	if journalEntries != nil {
		journalEntries.WithLabelValues(entryType).Inc()
	}
}

func IncAssignmentTransition(to string) {
	if assignmentTransitions != nil {
		assignmentTransitions.WithLabelValues(to).Inc()
	}
}

func IncGeocodeLookup(result string) {
	if geocodeLookups != nil {
		geocodeLookups.WithLabelValues(result).Inc()
	}
}

func IncOperationEvent(event string) {
	if operationEvents != nil {
		operationEvents.WithLabelValues(event).Inc()
	}
}

// IncJournalExport records an export attempt; result is "success" or "error".
func IncJournalExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if journalExports != nil {
		journalExports.WithLabelValues(format, result).Inc()
	}
}
