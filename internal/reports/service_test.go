package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/dbtest"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
)

type line struct {
	product uuid.UUID
	name    string
	qty     int
	price   int64
}

func seedSale(t *testing.T, conn *gorm.DB, at time.Time, method enums.PaymentMethod, status enums.SaleStatus, discount int64, lines ...line) {
	t.Helper()
	id := uuid.New()
	subtotal := decimal.Zero
	items := make([]models.SaleItem, 0, len(lines))
	for _, l := range lines {
		total := decimal.NewFromInt(l.price * int64(l.qty))
		subtotal = subtotal.Add(total)
		items = append(items, models.SaleItem{
			ID:            uuid.New(),
			SaleID:        id,
			ProductID:     l.product,
			Name:          l.name,
			SKU:           "SKU-" + l.name,
			Quantity:      l.qty,
			UnitPrice:     decimal.NewFromInt(l.price),
			OriginalPrice: decimal.NewFromInt(l.price),
			TotalPrice:    total,
		})
	}
	tax := subtotal.Mul(decimal.RequireFromString("0.18")).Round(0)
	sale := &models.Sale{
		ID:             id,
		SaleNumber:     "VV-" + id.String()[:8],
		CashierID:      uuid.New(),
		Status:         status,
		PaymentMethod:  method,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: decimal.NewFromInt(discount),
		TotalAmount:    subtotal.Add(tax).Sub(decimal.NewFromInt(discount)),
		Items:          items,
		CreatedAt:      at.UTC(),
	}
	require.NoError(t, conn.Create(sale).Error)
}

func TestDailyReportAggregatesCompletedSalesOfTheLocalDay(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn)})
	require.NoError(t, err)

	glass, cable := uuid.New(), uuid.New()
	kigali := time.FixedZone("CAT", 2*60*60)

	// 00:30 local on the 14th is still the 13th in UTC.
	seedSale(t, conn, time.Date(2026, 3, 14, 0, 30, 0, 0, kigali), enums.PaymentMethodCash, enums.SaleStatusCompleted, 0,
		line{glass, "Glass", 2, 10000})
	seedSale(t, conn, time.Date(2026, 3, 14, 15, 0, 0, 0, kigali), enums.PaymentMethodMomoMTN, enums.SaleStatusCompleted, 1000,
		line{glass, "Glass", 1, 10000}, line{cable, "Cable", 4, 2500})
	seedSale(t, conn, time.Date(2026, 3, 14, 16, 0, 0, 0, kigali), enums.PaymentMethodCash, enums.SaleStatusVoided, 0,
		line{cable, "Cable", 10, 2500})
	seedSale(t, conn, time.Date(2026, 3, 15, 0, 5, 0, 0, kigali), enums.PaymentMethodCash, enums.SaleStatusCompleted, 0,
		line{cable, "Cable", 1, 2500})

	report, err := svc.Daily(context.Background(), "2026-03-14")
	require.NoError(t, err)

	require.Equal(t, "2026-03-14", report.Date)
	require.EqualValues(t, 2, report.SalesCount)
	require.True(t, report.TaxTotal.Equal(decimal.NewFromInt(7200)), report.TaxTotal.String())
	require.True(t, report.DiscountTotal.Equal(decimal.NewFromInt(1000)), report.DiscountTotal.String())
	require.True(t, report.GrossTotal.Equal(decimal.NewFromInt(46200)), report.GrossTotal.String())

	require.Len(t, report.ByPaymentMethod, 2)
	require.Equal(t, enums.PaymentMethodCash, report.ByPaymentMethod[0].Method)
	require.EqualValues(t, 1, report.ByPaymentMethod[0].Count)
	require.True(t, report.ByPaymentMethod[0].Total.Equal(decimal.NewFromInt(23600)))
	require.Equal(t, enums.PaymentMethodMomoMTN, report.ByPaymentMethod[1].Method)
	require.True(t, report.ByPaymentMethod[1].Total.Equal(decimal.NewFromInt(22600)))

	require.Len(t, report.TopProducts, 2)
	require.Equal(t, cable, report.TopProducts[0].ProductID)
	require.EqualValues(t, 4, report.TopProducts[0].Quantity)
	require.Equal(t, glass, report.TopProducts[1].ProductID)
	require.EqualValues(t, 3, report.TopProducts[1].Quantity)
	require.True(t, report.TopProducts[1].Revenue.Equal(decimal.NewFromInt(30000)))
}

func TestDailyReportEmptyDayAndDefaultDate(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo: NewRepository(conn),
		Now:  func() time.Time { return time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	report, err := svc.Daily(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "2026-03-15", report.Date)
	require.Zero(t, report.SalesCount)
	require.True(t, report.GrossTotal.IsZero())
	require.Empty(t, report.ByPaymentMethod)
	require.NotNil(t, report.ByPaymentMethod)
}

func TestDailyReportRejectsBadDate(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: NewRepository(dbtest.Open(t))})
	require.NoError(t, err)

	_, err = svc.Daily(context.Background(), "14/03/2026")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
