package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder("testns", reg)

	rec.ObserveRun("success", 90*time.Second)
	rec.ObserveRun("failed", 5*time.Second)
	rec.ObserveStage("writing")
	rec.ObserveStage("writing")
	rec.ObserveToolCall("Bash", true)
	rec.ObserveToolCall("Bash", false)
	rec.ObserveUsage("claude-sonnet-4-5", 1000, 2000, 50, 0, 0.25)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.runsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.stagesTotal.WithLabelValues("writing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.toolsTotal.WithLabelValues("Bash", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.toolsTotal.WithLabelValues("Bash", "error")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("claude-sonnet-4-5", "input")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("claude-sonnet-4-5", "output")))
	assert.Equal(t, 50.0, testutil.ToFloat64(rec.tokensTotal.WithLabelValues("claude-sonnet-4-5", "cache_creation")))
	assert.InDelta(t, 0.25, testutil.ToFloat64(rec.costsTotal.WithLabelValues("claude-sonnet-4-5")), 1e-9)

	// Zero cache_read tokens must not create an empty series.
	assert.Equal(t, 3, testutil.CollectAndCount(rec.tokensTotal))
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder("testns", reg)
	rec.ObserveRun("success", time.Minute)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `testns_runs_total{status="success"} 1`)
}

// fakePrometheus answers instant queries with canned vector values.
func fakePrometheus(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query := r.Form.Get("query")
		w.Header().Set("Content-Type", "application/json")

		if strings.HasPrefix(query, "group by (model)") {
			fmt.Fprintf(w,
				`{"status":"success","data":{"resultType":"vector","result":[{"metric":{"model":"claude-sonnet-4-5"},"value":[%d,"1"]}]}}`,
				time.Now().Unix())
			return
		}

		value := "0"
		switch {
		case strings.Contains(query, "runs_total"):
			value = "3"
		case strings.Contains(query, `type="input"`):
			value = "1200"
		case strings.Contains(query, `type="output"`):
			value = "3400"
		case strings.Contains(query, "costs_usd_total"):
			value = "0.75"
		}
		fmt.Fprintf(w,
			`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[%d,"%s"]}]}}`,
			time.Now().Unix(), value)
	}))
}

func TestQueryServiceGetUsage(t *testing.T) {
	fake := fakePrometheus(t)
	defer fake.Close()

	svc, err := NewQueryService(fake.URL, "paperwright")
	require.NoError(t, err)

	report, err := svc.GetUsage(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Runs)
	assert.Equal(t, int64(1200), report.InputTokens)
	assert.Equal(t, int64(3400), report.OutputTokens)
	assert.Equal(t, int64(4600), report.TotalTokens)
	assert.InDelta(t, 0.75, report.TotalCost, 1e-9)
}

func TestQueryServiceGetUsageByModel(t *testing.T) {
	fake := fakePrometheus(t)
	defer fake.Close()

	svc, err := NewQueryService(fake.URL, "paperwright")
	require.NoError(t, err)

	byModel, err := svc.GetUsageByModel(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, byModel, 1)

	report, ok := byModel["claude-sonnet-4-5"]
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4-5", report.Model)
	assert.Equal(t, int64(1200), report.InputTokens)
	assert.Equal(t, int64(3400), report.OutputTokens)
	assert.InDelta(t, 0.75, report.TotalCost, 1e-9)
}

func TestSumQueryShapes(t *testing.T) {
	q := &QueryService{namespace: "paperwright"}

	assert.Equal(t, `sum(paperwright_tokens_total{type="input"})`,
		q.sumQuery("paperwright_tokens_total", `type="input"`, 0))
	assert.Equal(t, `sum(increase(paperwright_runs_total[1d]))`,
		q.sumQuery("paperwright_runs_total", "", 24*time.Hour))
}
