package metrics

import (
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "livepreview"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	requests         *prom.CounterVec
	requestDuration  *prom.HistogramVec
	binds            *prom.CounterVec
	pages            *prom.CounterVec
	reloads          prom.Counter
	reloadRecipients prom.Counter
	wsClients        prom.Gauge
	connected        prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.requests = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Served HTTP requests by method and status code",
		}, []string{"method", "status"})
		pr.requestDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time to complete an HTTP response",
			Buckets:   prom.DefBuckets,
		}, []string{"method"})
		pr.binds = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "bind_attempts_total",
			Help:      "Listener bind attempts by server kind and outcome",
		}, []string{"server", "outcome"})
		pr.pages = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pages_generated_total",
			Help:      "Synthesized pages by kind",
		}, []string{"kind"})
		pr.reloads = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "reload_broadcasts_total",
			Help:      "Reload notifications broadcast to WebSocket clients",
		})
		pr.reloadRecipients = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "reload_recipients_total",
			Help:      "Sum of clients reached by reload broadcasts",
		})
		pr.wsClients = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Currently connected WebSocket clients",
		})
		pr.connected = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_servers",
			Help:      "Server groupings whose HTTP and WS listeners are both up",
		})
		reg.MustRegister(pr.requests, pr.requestDuration, pr.binds, pr.pages, pr.reloads, pr.reloadRecipients, pr.wsClients, pr.connected)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRequest(method string, status int, d time.Duration) {
	if p == nil || p.requests == nil {
		return
	}
	p.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	p.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBindOutcome(server string, outcome BindOutcome) {
	if p == nil || p.binds == nil {
		return
	}
	p.binds.WithLabelValues(server, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncPageGenerated(kind PageKind) {
	if p == nil || p.pages == nil {
		return
	}
	p.pages.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusRecorder) IncReloadBroadcast(clients int) {
	if p == nil || p.reloads == nil {
		return
	}
	p.reloads.Inc()
	p.reloadRecipients.Add(float64(clients))
}

func (p *PrometheusRecorder) SetWSClients(n int) {
	if p == nil || p.wsClients == nil {
		return
	}
	p.wsClients.Set(float64(n))
}

func (p *PrometheusRecorder) SetConnectedServers(n int) {
	if p == nil || p.connected == nil {
		return
	}
	p.connected.Set(float64(n))
}
