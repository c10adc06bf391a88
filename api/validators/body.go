package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

// MaxBodyBytes caps JSON request bodies. The largest legitimate body is a
// full cart submitted to /api/sales.
const MaxBodyBytes = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// decimals validate as their string form so "money" can parse them
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	if err := v.RegisterValidation("money", isMoney); err != nil {
		panic(err)
	}
	return v
}()

// isMoney accepts non-negative decimal amounts.
func isMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && !d.IsNegative()
}

// DecodeJSONBody strictly decodes one JSON document into dest and runs its
// validate tags. Failures come back as CodeValidation errors whose details
// are keyed by JSON field name.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "request body exceeds %d bytes", MaxBodyBytes)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON object")
	}

	err := validate.Struct(dest)
	var fieldErrs validator.ValidationErrors
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fieldErrs):
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = describe(fe)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
}

func describe(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid uuid"
	case "money":
		return "must be a non-negative amount"
	case "oneof":
		return "must be one of [" + p + "]"
	case "min", "gte":
		return "must be at least " + p
	case "max", "lte":
		return "must be at most " + p
	case "gt":
		return "must be greater than " + p
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}
