package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)
	return m.Counter.GetValue()
}

func TestVelocityBlockCounter(t *testing.T) {
	AntifraudVelocityBlockTotal.Reset()

	AntifraudVelocityBlockTotal.WithLabelValues("customer", "commit").Inc()
	AntifraudVelocityBlockTotal.WithLabelValues("customer", "commit").Inc()
	AntifraudVelocityBlockTotal.WithLabelValues("staff", "refund").Inc()

	if got := counterValue(t, AntifraudVelocityBlockTotal, "customer", "commit"); got != 2.0 {
		t.Errorf("expected counter value 2, got %f", got)
	}
	if got := counterValue(t, AntifraudVelocityBlockTotal, "staff", "refund"); got != 1.0 {
		t.Errorf("expected counter value 1, got %f", got)
	}
}

func TestMiddleware_RecordsRequests(t *testing.T) {
	HTTPRequestsTotal.Reset()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping/42", nil)
	r.ServeHTTP(w, req)

	// Counter keys by route pattern, not the concrete path
	if got := counterValue(t, HTTPRequestsTotal, "GET", "/ping/:id", "2xx"); got != 1.0 {
		t.Errorf("expected counter value 1, got %f", got)
	}
}

func TestMiddleware_ObservesDuration(t *testing.T) {
	HTTPRequestDuration.Reset()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	ch := make(chan prometheus.Metric, 10)
	HTTPRequestDuration.Collect(ch)
	close(ch)

	found := false
	for metric := range ch {
		m := &dto.Metric{}
		_ = metric.Write(m)
		if m.Histogram != nil && m.Histogram.GetSampleCount() == 1 {
			found = true
		}
	}
	if !found {
		t.Error("expected histogram with 1 sample")
	}
}

func TestStatusBucket(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{102, "1xx"},
		{200, "2xx"},
		{299, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}
	for _, tc := range cases {
		if got := statusBucket(tc.code); got != tc.want {
			t.Errorf("statusBucket(%d) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestMetrics_Registered(t *testing.T) {
	// Gather all metrics
	gathered, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range gathered {
		found[mf.GetName()] = true
	}

	expected := []string{
		"loyalty_http_requests_total",
		"loyalty_antifraud_velocity_block_total",
	}
	for _, name := range expected {
		if !found[name] {
			// Some metrics may not have been written yet, that's OK
			t.Logf("metric %s not yet gathered (no data written)", name)
		}
	}
}
