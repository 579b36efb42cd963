package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.SetState("Idle", []string{"Idle"})
	m.ProcessStarted(nil)
	m.ConnectAttempt(errors.New("refused"))
	m.ConnectionLost()
	m.MessageReceived("gesture")
	m.CommandSent(nil)
	m.GestureDetected("ok")
	m.UnrecognizedMessage()
	assert.Nil(t, m.Registry())
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ConnectAttempt(errors.New("refused"))
	m.ConnectAttempt(errors.New("refused"))
	m.ConnectAttempt(nil)
	m.GestureDetected("thumbs_up")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectAttempts.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectAttempts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gesturesDetected.WithLabelValues("thumbs_up")))

	m.SetState("Connected", []string{"Idle", "Connected"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lifecycleState.WithLabelValues("Connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lifecycleState.WithLabelValues("Idle")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.GestureDetected("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `mudra_gestures_detected_total{gesture="ok"} 1`))
}
