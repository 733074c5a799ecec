package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/jobs/:id", func(c echo.Context) error {
		if c.Param("id") == "0" {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return c.NoContent(http.StatusOK)
	})

	for _, path := range []string{"/api/jobs/1", "/api/jobs/2", "/api/jobs/0"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/jobs/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/jobs/:id", "404")))
}

func TestHandlerExposesRealtimeCounters(t *testing.T) {
	m := New()
	m.Published()
	m.Published()
	m.Dropped()
	m.StreamOpened("grpc")
	m.StreamOpened("websocket")
	m.StreamClosed("websocket")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "hubfreelance_realtime_published_total 2"), text)
	assert.True(t, strings.Contains(text, "hubfreelance_realtime_dropped_total 1"))
	assert.True(t, strings.Contains(text, `hubfreelance_realtime_subscribers{transport="grpc"} 1`))
	assert.True(t, strings.Contains(text, `hubfreelance_realtime_subscribers{transport="websocket"} 0`))
}
