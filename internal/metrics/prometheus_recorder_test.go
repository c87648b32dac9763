package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveRequest("GET", 200, 15*time.Millisecond)
	pr.IncBindOutcome("http", BindInUse)
	pr.IncPageGenerated(PageIndex)
	pr.IncReloadBroadcast(2)
	pr.SetWSClients(2)
	pr.SetConnectedServers(1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"livepreview_http_requests_total",
		"livepreview_bind_attempts_total",
		"livepreview_pages_generated_total",
		"livepreview_reload_broadcasts_total",
		"livepreview_ws_clients",
	} {
		if !names[want] {
			t.Errorf("missing metric %s", want)
		}
	}
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveRequest("GET", 500, time.Second)
	pr.IncPageGenerated(PageNoRoot)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncPageGenerated(PageDoesNotExist)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `livepreview_pages_generated_total{kind="not_found"} 1`) {
		t.Errorf("expected page counter in output:\n%s", rec.Body.String())
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopRecorder); !ok {
		t.Error("expected NoopRecorder for nil")
	}
}
