package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_api_requests_total", Help: "API requests"},
		[]string{"method", "endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_enqueue_total", Help: "SQS enqueue results"},
		[]string{"queue", "result"},
	)
	VendorSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_vendor_send_total", Help: "Vendor send outcomes"},
		[]string{"result", "http_status"},
	)
	VendorLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "warelay_vendor_send_latency_seconds", Help: "Vendor send latency"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_webhook_events_total", Help: "Inbound webhook events"},
		[]string{"kind", "status"},
	)
	ReconcileResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_reconcile_results_total", Help: "Delivery report ingestion outcomes"},
		[]string{"outcome"},
	)
	UnknownMappings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_reconcile_unknown_mapping_total", Help: "Delivery reports with unrecognized status vocabulary"},
		[]string{"event_type", "err_code"},
	)
	CampaignRecipients = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_campaign_recipients_total", Help: "Per-recipient campaign outcomes"},
		[]string{"outcome"},
	)
	ConversationResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "warelay_conversation_resolutions_total", Help: "find-or-create resolutions"},
		[]string{"resolution"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, VendorSend, VendorLatency, WebhookEvents,
		ReconcileResults, UnknownMappings, CampaignRecipients, ConversationResolutions)
}
