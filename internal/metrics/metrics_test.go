package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/classes/7/enroll", "201", 0.05)
	RecordHTTPRequest("POST", "/classes/7/enroll", "201", 0.07)
	RecordHTTPRequest("POST", "/classes/7/enroll", "402", 0.01)

	created := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/classes/7/enroll", "201"))
	denied := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/classes/7/enroll", "402"))

	assert.Equal(t, float64(2), created)
	assert.Equal(t, float64(1), denied)
}

func TestRecordEnrollment(t *testing.T) {
	EnrollmentsTotal.Reset()

	RecordEnrollment("enrolled")
	RecordEnrollment("enrolled")
	RecordEnrollment("waitlist")

	enrolled := testutil.ToFloat64(EnrollmentsTotal.WithLabelValues("enrolled"))
	waitlisted := testutil.ToFloat64(EnrollmentsTotal.WithLabelValues("waitlist"))

	assert.Equal(t, float64(2), enrolled)
	assert.Equal(t, float64(1), waitlisted)
}

func TestRecordCancellation(t *testing.T) {
	CancellationsTotal.Reset()

	RecordCancellation(false)
	RecordCancellation(false)
	RecordCancellation(true)

	timely := testutil.ToFloat64(CancellationsTotal.WithLabelValues("false"))
	late := testutil.ToFloat64(CancellationsTotal.WithLabelValues("true"))

	assert.Equal(t, float64(2), timely)
	assert.Equal(t, float64(1), late)
}

func TestRecordPromotion(t *testing.T) {
	testCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boxbook_waitlist_promotions_total_test",
			Help: "Total number of waitlist promotions",
		},
	)

	oldCounter := PromotionsTotal
	PromotionsTotal = testCounter
	defer func() { PromotionsTotal = oldCounter }()

	RecordPromotion()
	RecordPromotion()

	assert.Equal(t, float64(2), testutil.ToFloat64(testCounter))
}

func TestRecordDebitAndRefund(t *testing.T) {
	testDebits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boxbook_credit_debits_total_test",
			Help: "Total number of credits debited",
		},
	)
	testRefunds := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boxbook_credit_refunds_total_test",
			Help: "Total number of credits refunded",
		},
	)

	oldDebits, oldRefunds := CreditDebitsTotal, CreditRefundsTotal
	CreditDebitsTotal, CreditRefundsTotal = testDebits, testRefunds
	defer func() { CreditDebitsTotal, CreditRefundsTotal = oldDebits, oldRefunds }()

	RecordDebit()
	RecordDebit()
	RecordRefund()

	assert.Equal(t, float64(2), testutil.ToFloat64(testDebits))
	assert.Equal(t, float64(1), testutil.ToFloat64(testRefunds))
}

func TestRecordNotification(t *testing.T) {
	NotificationsSentTotal.Reset()

	RecordNotification("waitlist_promoted", "sent")
	RecordNotification("waitlist_promoted", "failed")
	RecordNotification("waitlist_dropped", "sent")

	sent := testutil.ToFloat64(NotificationsSentTotal.WithLabelValues("waitlist_promoted", "sent"))
	failed := testutil.ToFloat64(NotificationsSentTotal.WithLabelValues("waitlist_promoted", "failed"))

	assert.Equal(t, float64(1), sent)
	assert.Equal(t, float64(1), failed)
}

func TestNotifyQueueLength(t *testing.T) {
	NotifyQueueLength.Set(4)
	assert.Equal(t, float64(4), testutil.ToFloat64(NotifyQueueLength))

	NotifyQueueLength.Set(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(NotifyQueueLength))
}
