package enums

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PaymentMethod is the settlement channel chosen at the register.
// The zero value is PaymentMethodUnset.
type PaymentMethod string

const (
	PaymentMethodUnset        PaymentMethod = ""
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodMomoMTN      PaymentMethod = "MOMO_MTN"
	PaymentMethodMomoAirtel   PaymentMethod = "MOMO_AIRTEL"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
)

var paymentMethods = set[PaymentMethod]{
	PaymentMethodCash,
	PaymentMethodMomoMTN,
	PaymentMethodMomoAirtel,
	PaymentMethodBankTransfer,
	PaymentMethodCard,
}

// PaymentMethods lists every selectable method, excluding Unset.
func PaymentMethods() []PaymentMethod {
	return paymentMethods.values()
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	if p == PaymentMethodUnset {
		return "UNSET"
	}
	return string(p)
}

// IsValid is false for Unset.
func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

func (p PaymentMethod) IsSet() bool {
	return p != PaymentMethodUnset
}

// IsMobileMoney reports whether settlement needs a momo phone number.
func (p PaymentMethod) IsMobileMoney() bool {
	return p == PaymentMethodMomoMTN || p == PaymentMethodMomoAirtel
}

// ParsePaymentMethod converts raw input into a PaymentMethod. Empty input
// yields PaymentMethodUnset.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return PaymentMethodUnset, nil
	}
	if _, err := paymentMethods.parse("payment method", normalized); err != nil {
		return PaymentMethodUnset, fmt.Errorf("invalid payment method %q", value)
	}
	return PaymentMethod(normalized), nil
}

// MarshalJSON encodes Unset as null.
func (p PaymentMethod) MarshalJSON() ([]byte, error) {
	if p == PaymentMethodUnset {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

func (p *PaymentMethod) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = PaymentMethodUnset
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePaymentMethod(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
