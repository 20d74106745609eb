package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("storefront-test")
	require.NoError(t, m.Register(reg))

	m.RecordConfirmation("push", "paid")
	m.RecordConfirmation("push", "paid")
	m.RecordConfirmation("pull", "already_paid")
	m.RecordCheckout("success")
	m.RecordOutbox("sent", 3)
	m.RecordOutbox("sent", 0)
	m.RecordOrdersExpired(2)
	m.ObserveProviderCall("create_session", errors.New("timeout"), 50*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfirmationsTotal.WithLabelValues("push", "paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfirmationsTotal.WithLabelValues("pull", "already_paid")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxRelayTotal.WithLabelValues("sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersExpiredTotal))

	require.Error(t, m.Register(reg))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCheckout("success")
		m.RecordConfirmation("push", "paid")
		m.RecordWebhookSignatureFailure()
		m.RecordCartClearFailure()
		m.RecordHTTPRequest("GET", "/api/v1/cart", 200, time.Millisecond)
	})
}
