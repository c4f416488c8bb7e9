package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/card-settlement/pkg/account"
)

func TestNewRefund(t *testing.T) {
	r, err := NewRefund("payment-1", 500)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "payment-1", r.PaymentID)

	_, err = NewRefund("payment-1", 0)
	assert.ErrorIs(t, err, ErrInvalidRefundAmount)

	_, err = NewRefund("payment-1", -10)
	assert.ErrorIs(t, err, ErrInvalidRefundAmount)
}

func TestRefund_FitsInto(t *testing.T) {
	payment := &Payment{Amount: 1205, Status: PaymentStatusApproved}

	full := &Refund{Amount: 1205}
	assert.True(t, full.FitsInto(payment, 0))
	assert.False(t, full.FitsInto(payment, 1))

	part := &Refund{Amount: 205}
	assert.True(t, part.FitsInto(payment, 1000))
	assert.False(t, part.FitsInto(payment, 1001))

	// refunded+Amount переполняет int64
	huge := &Refund{Amount: math.MaxInt64}
	assert.False(t, huge.FitsInto(payment, 0))
	assert.False(t, huge.FitsInto(payment, 1))
	assert.False(t, huge.FitsInto(payment, 1205))
	assert.False(t, part.FitsInto(payment, math.MaxInt64))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code account.ErrorCode
		want Outcome
	}{
		{account.CodeInvalidAccountNumber, Outcome{PaymentStatusDeclined, SeverityForbidden}},
		{account.CodeInvalidAmount, Outcome{PaymentStatusDeclined, SeverityBadRequest}},
		{account.CodeInsufficientFunds, Outcome{PaymentStatusDeclined, SeverityPaymentRequired}},
		{account.CodeServiceUnavailable, Outcome{PaymentStatusFailed, SeverityInternal}},
		{account.CodeUnknown, Outcome{PaymentStatusFailed, SeverityInternal}},
		{account.ErrorCode("something_new"), Outcome{PaymentStatusFailed, SeverityInternal}},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code))
		})
	}
}
