package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/supserrr/vevurn-sub002/internal/products"
	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/dbtest"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
	"github.com/supserrr/vevurn-sub002/pkg/redis/redistest"
)

func seedStock(t *testing.T, conn *gorm.DB, sku string, stock, min int, active bool) *models.Product {
	t.Helper()
	p := &models.Product{
		SKU:          sku,
		Name:         "Item " + sku,
		UnitPrice:    decimal.NewFromInt(1000),
		CurrentStock: stock,
		MinStock:     min,
		IsActive:     active,
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func newLowStockJob(t *testing.T, conn *gorm.DB, emitter eventEmitter) (*lowStockJob, *redistest.Fake) {
	t.Helper()
	client, fake := redistest.Client()
	jobIface, err := NewLowStockJob(LowStockJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		DB:       db.NewFromGorm(conn),
		Products: product.NewRepository(conn),
		Outbox:   emitter,
		Alerts:   client,
		EventFor: func(p *models.Product) outbox.DomainEvent { return product.StockLowEvent(p, nil, nil) },
		Location: time.FixedZone("CAT", 2*60*60),
	})
	require.NoError(t, err)
	job := jobIface.(*lowStockJob)
	job.now = func() time.Time { return time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC) }
	return job, fake
}

func TestLowStockJobRaisesOncePerDay(t *testing.T) {
	conn := dbtest.Open(t)
	low := seedStock(t, conn, "GL-1", 1, 3, true)
	seedStock(t, conn, "GL-2", 10, 3, true)
	seedStock(t, conn, "GL-3", 0, 3, false)

	job, fake := newLowStockJob(t, conn, outbox.NewService(outbox.NewRepository(conn), nil))

	require.NoError(t, job.Run(context.Background()))

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventStockLow, events[0].EventType)
	require.Equal(t, low.ID, events[0].AggregateID)

	// 23:30 UTC is already the 15th in Kigali.
	key := job.alerts.StockAlertKey(low.ID.String(), "2026-03-15")
	require.Contains(t, fake.Data, key)
	require.Equal(t, lowStockAlertTTL, fake.TTLs[key])

	require.NoError(t, job.Run(context.Background()))
	var after []models.OutboxEvent
	require.NoError(t, conn.Find(&after).Error)
	require.Len(t, after, 1)
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox insert failed")
}

func TestLowStockJobReleasesClaimWhenEmitFails(t *testing.T) {
	conn := dbtest.Open(t)
	low := seedStock(t, conn, "GL-1", 0, 2, true)

	job, fake := newLowStockJob(t, conn, failingEmitter{})

	err := job.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), low.ID.String())
	require.Empty(t, fake.Data)
}

func TestNewLowStockJobRequiresDependencies(t *testing.T) {
	_, err := NewLowStockJob(LowStockJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}
