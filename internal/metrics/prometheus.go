package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

const eventsMetricName = "meshtalk_call_relay_events_total"

// PrometheusHandler exposes Metrics in Prometheus' text exposition format.
//
// All counters are exported as a single metric with an `event` label, which
// keeps the in-process registry simple while still allowing scraping.
func PrometheusHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		events := make([]string, 0, len(snap))
		for event := range snap {
			events = append(events, event)
		}
		sort.Strings(events)

		var b strings.Builder
		fmt.Fprintf(&b, "# HELP %s Internal event counters.\n", eventsMetricName)
		fmt.Fprintf(&b, "# TYPE %s counter\n", eventsMetricName)
		for _, event := range events {
			fmt.Fprintf(&b, "%s{event=%q} %d\n", eventsMetricName, event, snap[event])
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = io.WriteString(w, b.String())
	})
}
