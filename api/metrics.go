/*
metrics.go - Prometheus instrumentation for the record engine API

PURPOSE:
  Counts every record operation by store, operation, and outcome. The
  /metrics endpoint exposes the standard Prometheus text format.

METRIC:
  record_engine_operations_total{store, op, outcome}
    outcome is "ok", the numeric wire code ("100".."104") for coded
    failures, or "error" for internal failures.
*/
package api

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/caremesh/record-engine/generic"
)

var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "record_engine_operations_total",
		Help: "Record store operations by store kind, operation, and outcome.",
	},
	[]string{"store", "op", "outcome"},
)

// observe records one operation outcome.
func observe(kind generic.Kind, op string, err error) {
	outcome := "ok"
	if err != nil {
		if code, coded := generic.CodeOf(err); coded {
			outcome = strconv.Itoa(int(code))
		} else {
			outcome = "error"
		}
	}
	operationsTotal.WithLabelValues(string(kind), op, outcome).Inc()
}
