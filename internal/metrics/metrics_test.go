package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskhub/internal/infrastructure/monitor"
)

func TestObserveRequest(t *testing.T) {
	m := New("taskhub_test")
	m.ObserveRequest("GET", "/tasks", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", "/tasks", 200, 20*time.Millisecond)
	m.ObserveRequest("DELETE", "/tasks/{id}", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/tasks", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("DELETE", "/tasks/{id}", "404")))
}

func TestObserveStatus(t *testing.T) {
	m := New("")
	m.ObserveStatus(monitor.Status{Healthy: true, BufferSize: 7})
	assert.Equal(t, 7.0, testutil.ToFloat64(m.bufferSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthy))

	m.ObserveStatus(monitor.Status{})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.healthy))
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := New("taskhub_test")
	m.ObserveRequest("GET", "/health", 200, time.Millisecond)

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	m.Handler()(&ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.True(t, strings.Contains(body, "taskhub_test_http_requests_total"), body)
}
