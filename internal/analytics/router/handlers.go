package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/internal/analytics/types"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/money"
	"github.com/supserrr/vevurn-sub002/pkg/outbox/payloads"
)

// builder holds what the built-in handlers share.
type builder struct {
	writer Writer
	logg   *logger.Logger
	places int32
}

func (b *builder) saleCompleted(ctx context.Context, env types.Envelope, event *payloads.SaleCompletedEvent) error {
	ctx = b.logg.WithFields(ctx, map[string]any{
		"sale_id":     event.SaleID.String(),
		"sale_number": event.SaleNumber,
		"line_count":  len(event.Items),
	})
	raw, err := types.JSONColumn(event)
	if err != nil {
		return err
	}
	tax := money.MinorUnits(event.TaxAmount, b.places)
	head := types.SaleLineRow{
		EventID:        env.EventID,
		EventType:      string(env.EventType),
		OccurredAt:     env.OccurredAt,
		SaleID:         event.SaleID.String(),
		SaleNumber:     nullable(event.SaleNumber),
		CashierID:      nullableID(&event.CashierID),
		CustomerID:     nullableID(event.CustomerID),
		PaymentMethod:  nullable(string(event.PaymentMethod)),
		Currency:       event.Currency,
		SaleTotalMinor: money.MinorUnits(event.TotalAmount, b.places),
		SaleTaxMinor:   &tax,
		Payload:        raw,
	}
	return b.insertLines(ctx, head, event.Items, 1)
}

// saleVoided writes reversal lines: quantities and totals negated, unit
// prices kept so revenue queries can simply sum.
func (b *builder) saleVoided(ctx context.Context, env types.Envelope, event *payloads.SaleVoidedEvent) error {
	ctx = b.logg.WithFields(ctx, map[string]any{
		"sale_id":     event.SaleID.String(),
		"sale_number": event.SaleNumber,
		"voided_by":   event.VoidedBy.String(),
	})
	raw, err := types.JSONColumn(event)
	if err != nil {
		return err
	}
	head := types.SaleLineRow{
		EventID:        env.EventID,
		EventType:      string(env.EventType),
		OccurredAt:     env.OccurredAt,
		SaleID:         event.SaleID.String(),
		SaleNumber:     nullable(event.SaleNumber),
		Currency:       event.Currency,
		SaleTotalMinor: -money.MinorUnits(event.TotalAmount, b.places),
		VoidReason:     nullable(event.Reason),
		Payload:        raw,
	}
	return b.insertLines(ctx, head, event.Items, -1)
}

func (b *builder) insertLines(ctx context.Context, head types.SaleLineRow, items []payloads.SaleLine, sign int64) error {
	rows := make([]types.SaleLineRow, len(items))
	for i, item := range items {
		row := head
		row.LineNo = int64(i + 1)
		row.ProductID = item.ProductID.String()
		row.SKU = item.SKU
		row.Name = item.Name
		row.Quantity = sign * int64(item.Quantity)
		row.UnitPriceMinor = money.MinorUnits(item.UnitPrice, b.places)
		row.OriginalMinor = money.MinorUnits(item.OriginalPrice, b.places)
		row.LineTotalMinor = sign * money.MinorUnits(item.TotalPrice, b.places)
		rows[i] = row
	}
	if err := b.writer.InsertSaleLines(ctx, rows); err != nil {
		b.logg.Error(ctx, "insert sale lines", err)
		return fmt.Errorf("insert %s lines: %w", head.EventType, err)
	}
	b.logg.Info(ctx, head.EventType+" lines inserted")
	return nil
}

func (b *builder) stockLow(ctx context.Context, env types.Envelope, event *payloads.StockLowEvent) error {
	ctx = b.logg.WithFields(ctx, map[string]any{
		"product_id":    event.ProductID.String(),
		"sku":           event.SKU,
		"current_stock": event.CurrentStock,
	})
	raw, err := types.JSONColumn(event)
	if err != nil {
		return err
	}
	err = b.writer.InsertStock(ctx, types.StockEventRow{
		EventID:      env.EventID,
		OccurredAt:   env.OccurredAt,
		ProductID:    event.ProductID.String(),
		SKU:          event.SKU,
		Name:         event.Name,
		CurrentStock: int64(event.CurrentStock),
		MinStock:     int64(event.MinStock),
		SaleID:       nullableID(event.SaleID),
		Payload:      raw,
	})
	if err != nil {
		b.logg.Error(ctx, "insert stock row", err)
		return fmt.Errorf("insert stock row: %w", err)
	}
	return nil
}

// nullable maps blank strings to a NULL column.
func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nullableID(id *uuid.UUID) *string {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	s := id.String()
	return &s
}
