package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arkz"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	ScoringRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "scoring_requests_total", Help: "Alignment scorer calls by outcome (ok, failed)."},
		[]string{"outcome"},
	)
	UploadURLsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "upload_urls_issued_total", Help: "Signed upload URLs issued."},
	)
	AttachmentsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "attachments_registered_total", Help: "Attachments appended to drafts."},
	)
	DraftTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "draft_transitions_total", Help: "Successful workflow transitions by target status."},
		[]string{"to"},
	)
	WriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "write_failures_total", Help: "Asynchronous write failures reported on the event bus, by operation."},
		[]string{"op"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		RateLimitAllowed,
		RateLimitRejected,
		ScoringRequests,
		UploadURLsIssued,
		AttachmentsRegistered,
		DraftTransitions,
		WriteFailures,
	)
}
