// Package webhook provides connectivity testing for customer webhook
// endpoints and keeps a short in-memory history of test outcomes.
package webhook

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/dataflow"
	"github.com/montanaflynn/stats"

	"github.com/wadesk/wadesk/pkg/common"
	"github.com/wadesk/wadesk/pkg/metrics"
)

// HistoryCap bounds the retained test history.
const HistoryCap = 10

// DefaultTimeout is the per-test request deadline.
const DefaultTimeout = 15 * time.Second

// TestResult is the outcome of one webhook delivery test. Latency is
// measured on every attempt, including failed ones. Success means the
// request reached the endpoint and a response came back; the response status
// is recorded but does not fail the test, since many customer endpoints are
// opaque to us. That optimistic classification is a documented limitation.
type TestResult struct {
	ID         int64     `json:"id" csv:"id"`
	Method     string    `json:"method" csv:"method"`
	URL        string    `json:"url" csv:"url"`
	Success    bool      `json:"success" csv:"success"`
	HTTPStatus int       `json:"http_status" csv:"http_status"`
	LatencyMs  int64     `json:"latency_ms" csv:"latency_ms"`
	Error      string    `json:"error,omitempty" csv:"error"`
	TestedAt   time.Time `json:"tested_at" csv:"tested_at"`
}

// Summary aggregates the retained history.
type Summary struct {
	Total        int     `json:"total"`
	Succeeded    int     `json:"succeeded"`
	SuccessRate  float64 `json:"success_rate"`
	LatencyMinMs float64 `json:"latency_min_ms"`
	LatencyMaxMs float64 `json:"latency_max_ms"`
	LatencyAvgMs float64 `json:"latency_avg_ms"`
	LatencyP95Ms float64 `json:"latency_p95_ms"`
}

// Tester fires test deliveries at webhook endpoints. Test never returns an
// error: an unreachable endpoint is a result, not a failure of the tester.
type Tester struct {
	timeout time.Duration

	mu      sync.Mutex
	history []*TestResult
}

func NewTester() *Tester {
	return &Tester{timeout: DefaultTimeout}
}

// SetTimeout overrides the per-test deadline (used in tests).
func (t *Tester) SetTimeout(d time.Duration) {
	t.timeout = d
}

// samplePayload mirrors the shape of a real gateway delivery so the endpoint
// under test exercises its actual parsing path.
func samplePayload() map[string]interface{} {
	return map[string]interface{}{
		"event":     "webhook.test",
		"instance":  "connectivity-check",
		"data":      map[string]interface{}{"message": "wadesk webhook connectivity test"},
		"date_time": time.Now().Format(time.RFC3339),
	}
}

// Test sends one request with the caller-supplied method, headers and body
// and records the outcome. Method defaults to POST, body to a sample gateway
// delivery. Network failures come back as a failed result with status 0;
// latency covers the full attempt either way.
func (t *Tester) Test(ctx context.Context, method, url string, headers map[string]string, body map[string]interface{}) *TestResult {
	if method == "" {
		method = http.MethodPost
	}
	if body == nil {
		body = samplePayload()
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var df *dataflow.DataFlow
	switch method {
	case http.MethodGet:
		df = gout.GET(url)
	case http.MethodPut:
		df = gout.PUT(url)
	case http.MethodDelete:
		df = gout.DELETE(url)
	default:
		method = http.MethodPost
		df = gout.POST(url)
	}
	df = df.WithContext(ctx).SetJSON(body)
	if len(headers) > 0 {
		h := gout.H{}
		for k, v := range headers {
			h[k] = v
		}
		df = df.SetHeader(h)
	}

	var code int
	start := time.Now()
	err := df.Code(&code).Do()
	latency := time.Since(start)

	// A local refusal resolves in under a millisecond; the measurement
	// still has to register as elapsed time.
	latencyMs := latency.Milliseconds()
	if latencyMs == 0 && latency > 0 {
		latencyMs = 1
	}

	result := &TestResult{
		ID:         common.UUIDint64(),
		Method:     method,
		URL:        url,
		HTTPStatus: code,
		LatencyMs:  latencyMs,
		TestedAt:   start,
	}
	if err != nil {
		result.HTTPStatus = 0
		result.Error = err.Error()
	} else {
		result.Success = true
	}

	t.record(result)
	metrics.IncrCounter(metrics.CounterWebhookTest, 1)
	return result
}

func (t *Tester) record(result *TestResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append([]*TestResult{result}, t.history...)
	if len(t.history) > HistoryCap {
		t.history = t.history[:HistoryCap]
	}
}

// History returns the retained results, most recent first.
func (t *Tester) History() []*TestResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*TestResult, len(t.history))
	copy(out, t.history)
	return out
}

// Summarize aggregates the retained history. An empty history yields a
// zero-valued summary.
func (t *Tester) Summarize() Summary {
	results := t.History()
	summary := Summary{Total: len(results)}
	if len(results) == 0 {
		return summary
	}

	latencies := make([]float64, 0, len(results))
	for _, r := range results {
		latencies = append(latencies, float64(r.LatencyMs))
		if r.Success {
			summary.Succeeded++
		}
	}
	summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Total)

	summary.LatencyMinMs, _ = stats.Min(latencies)
	summary.LatencyMaxMs, _ = stats.Max(latencies)
	summary.LatencyAvgMs, _ = stats.Mean(latencies)
	summary.LatencyP95Ms, _ = stats.Percentile(latencies, 95)
	return summary
}
