package domain

import "example.com/card-settlement/pkg/account"

// Severity: класс ответа клиенту для неуспешного платежа.
type Severity string

const (
	SeverityNone            Severity = ""
	SeverityForbidden       Severity = "forbidden"
	SeverityBadRequest      Severity = "bad_request"
	SeverityPaymentRequired Severity = "payment_required"
	SeverityInternal        Severity = "internal_error"
)

// Outcome: итог шага саги: статус платежа и класс ответа.
type Outcome struct {
	Status   PaymentStatus
	Severity Severity
}

// Approved: успешный итог.
var Approved = Outcome{Status: PaymentStatusApproved, Severity: SeverityNone}

// Internal: сбой, не связанный с ответом сервиса счетов.
var Internal = Outcome{Status: PaymentStatusFailed, Severity: SeverityInternal}

// Classify переводит код отказа сервиса счетов в итог платежа.
// Одинаково применяется к отказу при резерве и при списании.
func Classify(code account.ErrorCode) Outcome {
	switch code {
	case account.CodeInvalidAccountNumber:
		return Outcome{Status: PaymentStatusDeclined, Severity: SeverityForbidden}
	case account.CodeInvalidAmount:
		return Outcome{Status: PaymentStatusDeclined, Severity: SeverityBadRequest}
	case account.CodeInsufficientFunds:
		return Outcome{Status: PaymentStatusDeclined, Severity: SeverityPaymentRequired}
	default:
		return Internal
	}
}
