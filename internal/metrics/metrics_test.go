package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(OutboxDelivered)
	OutboxDelivered.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OutboxDelivered))
}

func TestCounterVecsAcceptLabels(t *testing.T) {
	OrdersCreated.WithLabelValues("buy").Inc()
	OrderTransitions.WithLabelValues("escrowed").Inc()
	LedgerEntriesWritten.WithLabelValues("ESCROW_LOCK").Inc()
	DisputesResolved.WithLabelValues("split").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(OrdersCreated.WithLabelValues("buy")))
	assert.Equal(t, float64(1), testutil.ToFloat64(OrderTransitions.WithLabelValues("escrowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(LedgerEntriesWritten.WithLabelValues("ESCROW_LOCK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(DisputesResolved.WithLabelValues("split")))
}
