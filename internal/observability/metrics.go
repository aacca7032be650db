package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Domain counters for the records-request lifecycle. HTTP-level metrics live
// in the middleware package; these count accepted and rejected operations
// regardless of the transport that triggered them.
var (
	RequestsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "esic_requests_submitted_total",
			Help: "Total number of records requests accepted.",
		},
	)

	ResponsesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esic_responses_recorded_total",
			Help: "Total number of staff responses recorded, by kind.",
		},
		[]string{"kind"},
	)

	AppealsFiled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esic_appeals_filed_total",
			Help: "Total number of appeals filed, by instance.",
		},
		[]string{"instance"},
	)

	// RejectedOperations counts lifecycle operations refused by a business
	// rule. The reason label is one of the stable error codes.
	RejectedOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esic_rejected_operations_total",
			Help: "Total number of lifecycle operations rejected, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(RequestsSubmitted, ResponsesRecorded, AppealsFiled, RejectedOperations)
}
