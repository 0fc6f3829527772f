package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteWritePusherSendsCountersOnly(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderbridge_test_total"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "orderbridge_test_seconds"})
	registry.MustRegister(counter, histogram)
	counter.Add(4)
	histogram.Observe(1)

	var got prompb.WriteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, got.Unmarshal(decoded))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pusher := NewRemoteWritePusher(srv.URL, "secret")
	pusher.now = func() time.Time { return time.UnixMilli(1700000000000) }

	require.NoError(t, pusher.Push(context.Background(), registry))
	require.Len(t, got.Timeseries, 1)
	series := got.Timeseries[0]
	assert.Equal(t, "__name__", series.Labels[0].Name)
	assert.Equal(t, "orderbridge_test_total", series.Labels[0].Value)
	assert.Equal(t, 4.0, series.Samples[0].Value)
	assert.Equal(t, int64(1700000000000), series.Samples[0].Timestamp)
}

func TestRemoteWritePusherReportsServerErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "orderbridge_test_gauge"})
	registry.MustRegister(gauge)
	gauge.Set(1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), registry)
	require.Error(t, err)
}
