package customers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/supserrr/vevurn-sub002/pkg/db/dbtest"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

func strPtr(v string) *string { return &v }

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestCreateCustomerNormalisesPhone(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CreateCustomerInput{
		Name:  "  Aline Uwase ",
		Phone: strPtr(" 078 812-3456 "),
	})
	require.NoError(t, err)
	require.Equal(t, "Aline Uwase", created.Name)
	require.Equal(t, "0788123456", *created.Phone)
	require.True(t, created.TotalSpent.IsZero())
}

func TestCreateCustomerRejectsDuplicateAndInvalidPhone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateCustomerInput{Name: "A", Phone: strPtr("0788123456")})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCustomerInput{Name: "B", Phone: strPtr("0788123456")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.Create(ctx, CreateCustomerInput{Name: "C", Phone: strPtr("call me")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// Walk-in customers without a phone never collide.
	_, err = svc.Create(ctx, CreateCustomerInput{Name: "D"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateCustomerInput{Name: "E"})
	require.NoError(t, err)
}

func TestSearchAndUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateCustomerInput{Name: "Jean Bosco", Phone: strPtr("0722000111")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateCustomerInput{Name: "Grace"})
	require.NoError(t, err)

	found, err := svc.Search(ctx, "bosco", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)

	byPhone, err := svc.Search(ctx, "0722", 0)
	require.NoError(t, err)
	require.Len(t, byPhone, 1)

	updated, err := svc.Update(ctx, created.ID, UpdateCustomerInput{Notes: strPtr("prefers MoMo")})
	require.NoError(t, err)
	require.Equal(t, "prefers MoMo", *updated.Notes)

	_, err = svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRecordPurchaseAccumulates(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateCustomerInput{Name: "Eric"})
	require.NoError(t, err)

	require.NoError(t, repo.RecordPurchase(ctx, created.ID, decimal.NewFromInt(2360), 1))
	require.NoError(t, repo.RecordPurchase(ctx, created.ID, decimal.NewFromInt(1000), 1))
	require.NoError(t, repo.RecordPurchase(ctx, created.ID, decimal.NewFromInt(-1000), -1))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, got.TotalSpent.Equal(decimal.NewFromInt(2360)), "got %s", got.TotalSpent)
	require.Equal(t, 1, got.Visits)

	ref, err := svc.LoadForRegister(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Eric", ref.Name)
}
