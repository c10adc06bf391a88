package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/supserrr/vevurn-sub002/internal/analytics/types"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
	"github.com/supserrr/vevurn-sub002/pkg/outbox/payloads"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.OutboxEventType("unsupported"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	require.ErrorIs(t, err, ErrUnsupportedEventType)
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router, writer := newTestRouter(t, map[enums.OutboxEventType]Handler{
		enums.EventStockLow: handler,
	})
	product := uuid.New()
	data, _ := json.Marshal(payloads.StockLowEvent{ProductID: product})
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventStockLow, Payload: data})
	require.NoError(t, err)
	decoded, ok := handler.payload.(*payloads.StockLowEvent)
	require.True(t, ok)
	require.Equal(t, product, decoded.ProductID)
	require.Empty(t, writer.stock)
}

func TestRouterRejectsEmptyOrBrokenPayload(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventSaleCompleted})
	require.ErrorContains(t, err, "empty payload")

	err = router.Handle(context.Background(), types.Envelope{EventType: enums.EventSaleVoided, Payload: []byte(`{"saleId":`)})
	require.ErrorContains(t, err, "decode sale.voided payload")
}

func sampleLines(glass, cable uuid.UUID) []payloads.SaleLine {
	return []payloads.SaleLine{
		{ProductID: glass, SKU: "GL-A54", Name: "Glass", Quantity: 2, UnitPrice: decimal.NewFromInt(9000), OriginalPrice: decimal.NewFromInt(10000), TotalPrice: decimal.NewFromInt(18000)},
		{ProductID: cable, SKU: "CB-USBC", Name: "Cable", Quantity: 1, UnitPrice: decimal.NewFromInt(2500), OriginalPrice: decimal.NewFromInt(2500), TotalPrice: decimal.NewFromInt(2500)},
	}
}

func TestSaleCompletedFansOutOneRowPerLine(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	glass, cable := uuid.New(), uuid.New()
	customer := uuid.New()
	event := payloads.SaleCompletedEvent{
		SaleID:        uuid.New(),
		SaleNumber:    "VV-20260314-ABC123",
		CashierID:     uuid.New(),
		CustomerID:    &customer,
		PaymentMethod: enums.PaymentMethodMomoMTN,
		Subtotal:      decimal.NewFromInt(20500),
		TaxAmount:     decimal.NewFromInt(3690),
		TotalAmount:   decimal.NewFromInt(24190),
		Currency:      "RWF",
		Items:         sampleLines(glass, cable),
	}
	data, _ := json.Marshal(event)
	occurred := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	err := router.Handle(context.Background(), types.Envelope{
		EventID:    "evt-1",
		EventType:  enums.EventSaleCompleted,
		OccurredAt: occurred,
		Payload:    data,
	})
	require.NoError(t, err)
	require.Len(t, writer.sales, 2)

	first := writer.sales[0]
	require.Equal(t, "evt-1", first.EventID)
	require.Equal(t, "sale.completed", first.EventType)
	require.Equal(t, occurred, first.OccurredAt)
	require.EqualValues(t, 1, first.LineNo)
	require.Equal(t, glass.String(), first.ProductID)
	require.EqualValues(t, 2, first.Quantity)
	require.EqualValues(t, 9000, first.UnitPriceMinor)
	require.EqualValues(t, 10000, first.OriginalMinor)
	require.EqualValues(t, 18000, first.LineTotalMinor)
	require.EqualValues(t, 24190, first.SaleTotalMinor)
	require.Equal(t, "MOMO_MTN", *first.PaymentMethod)
	require.Equal(t, customer.String(), *first.CustomerID)
	require.True(t, first.Payload.Valid)

	require.EqualValues(t, 2, writer.sales[1].LineNo)
	require.Equal(t, cable.String(), writer.sales[1].ProductID)
}

func TestSaleVoidedWritesNegatedLines(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	event := payloads.SaleVoidedEvent{
		SaleID:      uuid.New(),
		SaleNumber:  "VV-20260314-ABC123",
		VoidedBy:    uuid.New(),
		Reason:      "wrong item",
		TotalAmount: decimal.NewFromInt(24190),
		Currency:    "RWF",
		Items:       sampleLines(uuid.New(), uuid.New()),
	}
	data, _ := json.Marshal(event)

	require.NoError(t, router.Handle(context.Background(), types.Envelope{EventID: "evt-2", EventType: enums.EventSaleVoided, Payload: data}))
	require.Len(t, writer.sales, 2)
	require.EqualValues(t, -2, writer.sales[0].Quantity)
	require.EqualValues(t, -18000, writer.sales[0].LineTotalMinor)
	require.EqualValues(t, 9000, writer.sales[0].UnitPriceMinor)
	require.EqualValues(t, -24190, writer.sales[0].SaleTotalMinor)
	require.Equal(t, "wrong item", *writer.sales[0].VoidReason)
	require.Nil(t, writer.sales[0].PaymentMethod)
}

func TestStockLowWritesStockRow(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	saleID := uuid.New()
	event := payloads.StockLowEvent{ProductID: uuid.New(), SKU: "GL-A54", Name: "Glass", CurrentStock: 1, MinStock: 3, SaleID: &saleID}
	data, _ := json.Marshal(event)

	require.NoError(t, router.Handle(context.Background(), types.Envelope{EventID: "evt-3", EventType: enums.EventStockLow, Payload: data}))
	require.Len(t, writer.stock, 1)
	require.EqualValues(t, 1, writer.stock[0].CurrentStock)
	require.Equal(t, saleID.String(), *writer.stock[0].SaleID)
}

func TestHandlerPropagatesWriterError(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	writer.err = errors.New("bq down")
	data, _ := json.Marshal(payloads.StockLowEvent{ProductID: uuid.New()})
	err := router.Handle(context.Background(), types.Envelope{EventID: "evt-4", EventType: enums.EventStockLow, Payload: data})
	require.ErrorContains(t, err, "bq down")
}

func newTestRouter(t *testing.T, overrides map[enums.OutboxEventType]Handler) (*Router, *memoryWriter) {
	t.Helper()
	writer := &memoryWriter{}
	router, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}), 0, overrides)
	require.NoError(t, err)
	return router, writer
}

type stubHandler struct {
	payload any
}

func (s *stubHandler) Handle(_ context.Context, _ types.Envelope, payload any) error {
	s.payload = payload
	return nil
}

type memoryWriter struct {
	sales []types.SaleLineRow
	stock []types.StockEventRow
	err   error
}

func (m *memoryWriter) InsertSaleLines(_ context.Context, rows []types.SaleLineRow) error {
	if m.err == nil {
		m.sales = append(m.sales, rows...)
	}
	return m.err
}

func (m *memoryWriter) InsertStock(_ context.Context, row types.StockEventRow) error {
	if m.err == nil {
		m.stock = append(m.stock, row)
	}
	return m.err
}
