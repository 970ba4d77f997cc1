package credit

import (
	"strings"
	"time"
)

// Payment is the settlement option chosen for an order.
type Payment string

const (
	// PaymentCash means immediate payment.
	PaymentCash Payment = "cash"
	// PaymentCredit defers payment by the client's term days.
	PaymentCredit Payment = "credit"
)

// ParsePayment folds free-form input into a Payment. Unknown values mean cash.
func ParsePayment(v string) Payment {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "credit", "credito", "crédito":
		return PaymentCredit
	default:
		return PaymentCash
	}
}

// Terms is the credit standing of a client.
type Terms struct {
	Eligible bool `json:"eligible"`
	Blocked  bool `json:"blocked"`
	TermDays int  `json:"termDays"`
}

// Evaluate derives terms from the ledger's blocked flag and term days.
// A client is blocked only when the flag reads "si" or "sí" in any case.
func Evaluate(blockedFlag string, termDays int) Terms {
	if termDays < 0 {
		termDays = 0
	}
	flag := strings.TrimSpace(blockedFlag)
	blocked := strings.EqualFold(flag, "si") || strings.EqualFold(flag, "sí")
	return Terms{
		Eligible: !blocked,
		Blocked:  blocked,
		TermDays: termDays,
	}
}

// Ineligible is used whenever the ledger cannot vouch for the client.
func Ineligible() Terms {
	return Terms{}
}

// ResolvePayment returns the effective payment choice. Credit is only kept
// when the terms allow it.
func ResolvePayment(t Terms, requested Payment) Payment {
	if requested == PaymentCredit && t.Eligible {
		return PaymentCredit
	}
	return PaymentCash
}

// DueDate adds termDays calendar days to today's date. No business-day adjustment.
func DueDate(today time.Time, termDays int) time.Time {
	if termDays < 0 {
		termDays = 0
	}
	y, m, d := today.Date()
	return time.Date(y, m, d+termDays, 0, 0, 0, 0, today.Location())
}

// Decision bundles the evaluated terms with the payment they allow.
type Decision struct {
	Terms   Terms      `json:"terms"`
	Payment Payment    `json:"payment"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

// Decide resolves the payment for a request and, for credit, its due date.
func Decide(t Terms, requested Payment, today time.Time) Decision {
	out := Decision{Terms: t, Payment: ResolvePayment(t, requested)}
	if out.Payment == PaymentCredit {
		due := DueDate(today, t.TermDays)
		out.DueDate = &due
	}
	return out
}
