package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestObserveTransition(t *testing.T) {
	m := New()

	m.ObserveTransition(models.StatusPending, models.StatusActive)
	m.ObserveTransition(models.StatusPending, models.StatusActive)
	m.ObserveTransition(models.StatusActive, models.StatusResolved)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IncidentTransitions.WithLabelValues("pending", "active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IncidentTransitions.WithLabelValues("active", "resolved")))
}

func TestSetStatusCounts_ResetsMissing(t *testing.T) {
	m := New()

	m.SetStatusCounts(map[models.IncidentStatus]int{models.StatusPending: 3, models.StatusClosed: 1})
	m.SetStatusCounts(map[models.IncidentStatus]int{models.StatusActive: 2})

	assert.Equal(t, 0.0, testutil.ToFloat64(m.IncidentsByStatus.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IncidentsByStatus.WithLabelValues("active")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IncidentsByStatus.WithLabelValues("closed")))
}

func TestGinMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/incidents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/incidents/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/incidents/:id", "200")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "emergency_response_http_requests_total"))
}
