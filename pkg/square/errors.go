package square

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusPaymentRequired:     pkgerrors.CodePayment,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

// codeForStatus maps an HTTP status from Square onto a domain code. Unlisted
// 4xx are treated as bad input and everything else as Square being down.
func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

// translate wraps an SDK error in a domain error. The error body's first
// recognised entry wins over the HTTP status.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, e := range bodyErrors(apiErr) {
		if c, ok := codeForSquareError(e); ok {
			code = c
			break
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

func codeForSquareError(e *sq.Error) (pkgerrors.Code, bool) {
	switch {
	case e == nil:
		return "", false
	case e.Code == sq.ErrorCodeIdempotencyKeyReused:
		return pkgerrors.CodeIdempotency, true
	case e.Category == sq.ErrorCategoryAuthenticationError:
		return pkgerrors.CodeUnauthorized, true
	case e.Category == sq.ErrorCategoryPaymentMethodError:
		return pkgerrors.CodePayment, true
	}
	return "", false
}

// bodyErrors decodes the {"errors":[...]} body the SDK keeps as the cause.
func bodyErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body); err != nil {
		return nil
	}
	return body.Errors
}
