package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRendering(t *testing.T) {
	cases := []struct {
		code    Code
		status  int
		expose  bool
		details bool
		retry   bool
	}{
		{CodeValidation, http.StatusBadRequest, true, true, false},
		{CodeUnauthorized, http.StatusUnauthorized, true, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, true, true, false},
		{CodePayment, http.StatusPaymentRequired, true, true, false},
		{CodeIdempotency, http.StatusConflict, true, true, false},
		{CodeRateLimit, http.StatusTooManyRequests, true, false, false},
		{CodeInternal, http.StatusInternalServerError, false, false, true},
		{CodeDependency, http.StatusServiceUnavailable, false, true, true},
	}
	for _, tc := range cases {
		m := MetadataFor(tc.code)
		assert.Equal(t, tc.status, m.HTTPStatus, tc.code)
		assert.Equal(t, tc.expose, m.ExposeMessage, tc.code)
		assert.Equal(t, tc.details, m.DetailsAllowed, tc.code)
		assert.Equal(t, tc.retry, m.Retryable, tc.code)
		assert.NotEmpty(t, m.PublicMessage, tc.code)
	}

	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("NOPE"))
}

func TestErrorChain(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := fmt.Errorf("checkout: %w", Wrap(CodeDependency, cause, "card processor unreachable").
		WithDetails(map[string]string{"provider": "square"}))

	require.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeDependency))
	assert.False(t, IsCode(err, CodeInternal))
	assert.Equal(t, CodeDependency, CodeOf(err))
	assert.Equal(t, map[string]string{"provider": "square"}, As(err).Details())
	assert.Equal(t, "DEPENDENCY_ERROR: card processor unreachable: connection reset", As(err).Error())

	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.Nil(t, As(nil))
	assert.Equal(t, "product p1 not found", Newf(CodeNotFound, "product %s not found", "p1").Message())
	assert.Equal(t, "NOT_FOUND: gone", Wrap(CodeNotFound, nil, "gone").Error())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.WithDetails("x"))
	assert.NoError(t, e.Unwrap())
}

func TestDumpFields(t *testing.T) {
	fields := Dump(Wrap(CodeInternal, stdErrors.New("disk full"), "insert sale")).Fields()
	assert.Equal(t, string(CodeInternal), fields["error_code"])
	assert.Contains(t, fields, "error_chain")
	assert.NotContains(t, fields, "pg_code")

	plain := Dump(stdErrors.New("plain")).Fields()
	assert.NotContains(t, plain, "error_code")
	assert.NotContains(t, plain, "error_chain")
}

func TestPostgresDiagnostics(t *testing.T) {
	pgx := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key", TableName: "products"})
	diag, ok := PostgresDiagnostics(pgx)
	require.True(t, ok)
	assert.Equal(t, "23505", diag.Code)
	assert.Equal(t, "products_sku_key", diag.Constraint)
	assert.Equal(t, "products", Dump(pgx).Fields()["pg_table"])

	diag, ok = PostgresDiagnostics(&pq.Error{Code: "23503", Constraint: "sale_items_product_id_fkey"})
	require.True(t, ok)
	assert.Equal(t, "23503", diag.Code)

	_, ok = PostgresDiagnostics(stdErrors.New("plain"))
	assert.False(t, ok)
}
