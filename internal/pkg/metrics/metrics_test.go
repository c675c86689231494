package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.TicketIssued("created")
	m.TicketIssued("created")
	m.TicketIssued("failed")
	m.DeliveryOutcome("sent", "")
	m.DeliveryOutcome("invalid", "DOMAIN_NOT_EXIST")
	m.TicketValidated("VALID")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticketsIssued.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticketsIssued.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveryOutcomes.WithLabelValues("invalid", "DOMAIN_NOT_EXIST")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationResults.WithLabelValues("VALID")))
}

func TestMetrics_DeliveryRun(t *testing.T) {
	m := New()

	done := m.DeliveryRunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveryInFlight))
	done("completed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.deliveryInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveryRuns.WithLabelValues("completed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TicketIssued("created")
		m.DeliveryOutcome("sent", "")
		m.DeliveryRunStarted()("completed")
		m.MailSent(time.Second, true)
		m.TicketValidated("INVALID")
		m.GateClients("RECPTNOV2025", 2)
		m.HTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.MailSent(120*time.Millisecond, true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campuspass_mail_send_duration_seconds")
}
