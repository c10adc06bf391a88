package sales

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

// Rwandan mobile numbers, local (07XXXXXXXX) or with the 250 country code.
var momoPhonePattern = regexp.MustCompile(`^(07\d{8}|2507\d{8})$`)

// NormalizeMomoPhone strips formatting and checks the number shape.
func NormalizeMomoPhone(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	cleaned = strings.TrimPrefix(cleaned, "+")
	if !momoPhonePattern.MatchString(cleaned) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "momo phone must look like 07XXXXXXXX or 2507XXXXXXXX")
	}
	return cleaned, nil
}

// NewSaleNumber formats VV-YYYYMMDD-XXXXXX from the sale date and id.
func NewSaleNumber(at time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:6]
	return fmt.Sprintf("VV-%s-%s", at.UTC().Format("20060102"), suffix)
}

func validateSubmit(input *SubmitSaleInput, cardEnabled bool) error {
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale must contain at least one item")
	}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d]: product id is required", i)
		}
		if item.Quantity < 1 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d]: quantity must be at least 1", i)
		}
		if item.UnitPrice.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d]: unit price must not be negative", i)
		}
	}
	if input.DiscountAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount amount must not be negative")
	}
	if !input.PaymentMethod.IsSet() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %s", input.PaymentMethod)
	}

	if input.PaymentMethod.IsMobileMoney() {
		if input.MomoPhone == nil || strings.TrimSpace(*input.MomoPhone) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "momo phone is required for mobile money")
		}
		phone, err := NormalizeMomoPhone(*input.MomoPhone)
		if err != nil {
			return err
		}
		input.MomoPhone = &phone
	} else {
		input.MomoPhone = nil
	}

	switch input.PaymentMethod {
	case enums.PaymentMethodCash:
		if input.CashReceived == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "cash received is required for cash payments")
		}
		if input.CashReceived.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "cash received must not be negative")
		}
	case enums.PaymentMethodCard:
		if !cardEnabled {
			return pkgerrors.New(pkgerrors.CodeValidation, "card payments are not enabled")
		}
		if input.CardSourceID == nil || strings.TrimSpace(*input.CardSourceID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "card source id is required for card payments")
		}
	}
	if input.PaymentMethod != enums.PaymentMethodCash {
		input.CashReceived = nil
	}
	if input.Notes != nil {
		trimmed := strings.TrimSpace(*input.Notes)
		if trimmed == "" {
			input.Notes = nil
		} else {
			input.Notes = &trimmed
		}
	}
	return nil
}
