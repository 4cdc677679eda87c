package sensorsafrica

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMeasurements(t *testing.T) {
	t.Run("sends token and sensor id", func(t *testing.T) {
		var gotAuth, gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "secret-token", srv.Client(), nil)
		_, err := client.Measurements(context.Background(), 4898, nil)
		require.NoError(t, err)

		assert.Equal(t, "Token secret-token", gotAuth)
		assert.Contains(t, gotQuery, "sensor_id=4898")
		assert.NotContains(t, gotQuery, "timestamp__gte")
	})

	t.Run("passes incremental bound", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "", srv.Client(), nil)
		since := time.Date(2024, 3, 1, 10, 15, 5, 0, time.UTC)
		_, err := client.Measurements(context.Background(), 4898, &since)
		require.NoError(t, err)

		assert.Contains(t, gotQuery, "timestamp__gte=2024-03-01T10%3A15%3A05")
	})

	t.Run("decodes items", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"timestamp": "2024-03-01T10:15:04", "sensordatavalues": [{"value_type": "P2", "value": "12.40"}]}]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "", srv.Client(), nil)
		items, err := client.Measurements(context.Background(), 4898, nil)
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Len(t, items[0].SensorDataValues, 1)
		assert.Equal(t, "P2", items[0].SensorDataValues[0].ValueType)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "", srv.Client(), nil)
		_, err := client.Measurements(context.Background(), 4898, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server error is retried until success", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "", srv.Client(), nil)
		client.backoff.InitialInterval = time.Millisecond

		_, err := client.Measurements(context.Background(), 4898, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestClientNow(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"timestamp": "2024-03-01T10:15:04"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", srv.Client(), nil)
	items, err := client.Now(context.Background(), 4896)
	require.NoError(t, err)

	assert.Equal(t, "/now/", gotPath)
	assert.Len(t, items, 1)
}
