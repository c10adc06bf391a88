package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/outbox"
)

const (
	lowStockScanLimit = 500
	// alert keys outlive the day they name so a late scan cannot re-raise it
	lowStockAlertTTL = 36 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lowStockLister interface {
	ListLowStock(ctx context.Context, limit int) ([]models.Product, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type alertStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	StockAlertKey(productID, day string) string
}

// LowStockJobParams configure the low-stock scan.
type LowStockJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Products lowStockLister
	Outbox   eventEmitter
	Alerts   alertStore
	// EventFor builds the stock.low event for a product.
	EventFor func(product *models.Product) outbox.DomainEvent
	Location *time.Location
}

// NewLowStockJob raises one stock.low event per product and shop day for
// every active product at or below its minimum stock.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Products == nil:
		return nil, fmt.Errorf("product lister required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Alerts == nil:
		return nil, fmt.Errorf("alert store required")
	case params.EventFor == nil:
		return nil, fmt.Errorf("event builder required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &lowStockJob{
		logg:     params.Logger,
		db:       params.DB,
		products: params.Products,
		outbox:   params.Outbox,
		alerts:   params.Alerts,
		eventFor: params.EventFor,
		loc:      loc,
		now:      time.Now,
	}, nil
}

type lowStockJob struct {
	logg     *logger.Logger
	db       txRunner
	products lowStockLister
	outbox   eventEmitter
	alerts   alertStore
	eventFor func(product *models.Product) outbox.DomainEvent
	loc      *time.Location
	now      func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-scan" }

func (j *lowStockJob) Run(ctx context.Context) error {
	products, err := j.products.ListLowStock(ctx, lowStockScanLimit)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}
	day := j.now().In(j.loc).Format("2006-01-02")

	var (
		raised  int
		skipped int
		errs    error
	)
	for i := range products {
		product := &products[i]
		ok, err := j.raise(ctx, product, day)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", product.ID, err))
			continue
		}
		if ok {
			raised++
		} else {
			skipped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"day":            day,
		"low_stock":      len(products),
		"alerts_raised":  raised,
		"already_raised": skipped,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return errs
}

// raise claims the product's alert key for the day and emits the event. The
// claim is released when the emit fails so the next cycle retries.
func (j *lowStockJob) raise(ctx context.Context, product *models.Product, day string) (bool, error) {
	key := j.alerts.StockAlertKey(product.ID.String(), day)
	claimed, err := j.alerts.SetNX(ctx, key, product.CurrentStock, lowStockAlertTTL)
	if err != nil {
		return false, fmt.Errorf("claim alert: %w", err)
	}
	if !claimed {
		return false, nil
	}

	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, j.eventFor(product))
	})
	if err != nil {
		if delErr := j.alerts.Del(ctx, key); delErr != nil {
			err = multierr.Append(err, delErr)
		}
		return false, fmt.Errorf("emit stock.low: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"product_id":    product.ID.String(),
		"sku":           product.SKU,
		"current_stock": product.CurrentStock,
		"min_stock":     product.MinStock,
	})
	j.logg.Warn(logCtx, "product at or below minimum stock")
	return true, nil
}
