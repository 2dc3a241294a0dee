package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware_RecordsRequests(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/messages", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Post("/messages", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "nope") })
	app.Get("/broken", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/messages", nil),
		httptest.NewRequest(http.MethodGet, "/messages", nil),
		httptest.NewRequest(http.MethodPost, "/messages", nil),
		httptest.NewRequest(http.MethodGet, "/broken", nil),
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
	} {
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/messages", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/messages", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/broken", "500")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.RequestsTotal))
	assert.Zero(t, testutil.ToFloat64(m.InFlightGauge))
}
