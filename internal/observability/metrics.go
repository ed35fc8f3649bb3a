package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	EmailSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_email_send_total", Help: "Provider send outcomes"},
		[]string{"backend", "result"},
	)
	SendLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "campaigner_email_send_latency_seconds", Help: "Provider send latency"},
	)
	CampaignRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_campaign_runs_total", Help: "Campaign dispatch runs"},
		[]string{"result"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaigner_webhook_events_total", Help: "Provider webhook events"},
		[]string{"event"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, EmailSends, SendLatency, CampaignRuns, WebhookEvents)
}
