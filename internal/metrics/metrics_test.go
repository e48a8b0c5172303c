package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint", "2xx")
		IncBookingCreated("WEB")
		IncRefund("APPROVED")
		IncNotification("sent")
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(capacityRejections.WithLabelValues("car"))
	IncCapacityRejection("car")
	assert.Equal(t, before+1, testutil.ToFloat64(capacityRejections.WithLabelValues("car")))

	before = testutil.ToFloat64(statusTransitions.WithLabelValues("PENDING", "CONFIRMED"))
	IncStatusTransition("PENDING", "CONFIRMED")
	assert.Equal(t, before+1, testutil.ToFloat64(statusTransitions.WithLabelValues("PENDING", "CONFIRMED")))

	before = testutil.ToFloat64(sweepRuns.WithLabelValues("expire_tickets", "skipped"))
	ObserveSweep("expire_tickets", "skipped", time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(sweepRuns.WithLabelValues("expire_tickets", "skipped")))
}
