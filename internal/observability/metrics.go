package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. HTTP traffic is instrumented separately by
// middleware.Metrics; these track what the traffic did.
var (
	// ComplaintsSubmitted counts accepted complaint submissions by category.
	ComplaintsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_submitted_total",
			Help: "Complaints accepted, by category.",
		},
		[]string{"category"},
	)

	// ComplaintTransitions counts applied status changes.
	ComplaintTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_status_transitions_total",
			Help: "Complaint status changes, by source and target status.",
		},
		[]string{"from", "to"},
	)

	// ChatReplies counts bot replies by matched intent.
	ChatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_replies_total",
			Help: "Chatbot replies, by intent.",
		},
		[]string{"intent"},
	)

	// FeedbackRatings counts feedback by rating ("positive"/"negative").
	FeedbackRatings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_feedback_total",
			Help: "Chatbot feedback, by rating.",
		},
		[]string{"rating"},
	)

	// AdvisoryFailures counts client-side failures that were logged and
	// absorbed instead of surfaced (stats refresh, capability fetch, ...).
	AdvisoryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_advisory_failures_total",
			Help: "Absorbed client-side failures, by store and operation.",
		},
		[]string{"store", "op"},
	)

	// JobRuns counts background job executions by job and outcome.
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_runs_total",
			Help: "Background job runs, by job and outcome.",
		},
		[]string{"job", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ComplaintsSubmitted,
		ComplaintTransitions,
		ChatReplies,
		FeedbackRatings,
		AdvisoryFailures,
		JobRuns,
	)
}
