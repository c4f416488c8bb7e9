package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentEventType(t *testing.T) {
	assert.Equal(t, EventPaymentApproved, PaymentEventType("approved"))
	assert.Equal(t, EventPaymentDeclined, PaymentEventType("declined"))
	assert.Equal(t, EventPaymentFailed, PaymentEventType("failed"))
	assert.Empty(t, PaymentEventType("processing"))
}

func TestPaymentEventFromJSON(t *testing.T) {
	e, err := PaymentEventFromJSON([]byte(`{"payment_id":"p-1","status":"declined","amount":100,"reason":"insufficient_funds"}`))
	require.NoError(t, err)

	assert.Equal(t, "p-1", e.PaymentID)
	assert.Equal(t, "insufficient_funds", e.Reason)

	_, err = PaymentEventFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestRefundEvent_OmitsNothing(t *testing.T) {
	data, err := (&RefundEvent{RefundID: "r-1", PaymentID: "p-1", Amount: 30, RefundedTotal: 80}).ToJSON()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"refunded_total":80`)
}
