package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

const defaultCurrency = "RWF"

// PaymentCreateParams describes one card charge. Amount is in the currency's
// minor unit; RWF has none, so it is whole francs.
type PaymentCreateParams struct {
	Amount         int64
	Currency       string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

// request builds an auto-completed payment booked at locationID.
func (p PaymentCreateParams) request(locationID, idempotencyKey string) *sq.CreatePaymentRequest {
	return &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       p.SourceID,
		LocationID:     optional(locationID),
		AmountMoney:    money(p.Amount, p.Currency),
		Autocomplete:   ref(true),
		Note:           optional(p.Note),
		ReferenceID:    optional(p.ReferenceID),
	}
}

func ref[T any](v T) *T { return &v }

// optional trims s and returns nil when nothing is left.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func money(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = defaultCurrency
	}
	return &sq.Money{Amount: ref(amount), Currency: ref(sq.Currency(code))}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
