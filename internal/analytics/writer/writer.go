// Package writer batches analytics rows into BigQuery streaming inserts.
package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/supserrr/vevurn-sub002/internal/analytics/types"
)

// Inserter is implemented by pkg/bigquery.Client.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Config names the destination tables. Rows are held until BatchSize is
// reached or Flush is called.
type Config struct {
	SalesTable string
	StockTable string
	BatchSize  int
	Retry      Retry
}

// Retry bounds how long one insert keeps trying on transient errors.
type Retry struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

func (r Retry) withDefaults() Retry {
	if r.Attempts <= 0 {
		r.Attempts = 3
	}
	if r.Base <= 0 {
		r.Base = 250 * time.Millisecond
	}
	if r.Cap < r.Base {
		r.Cap = max(2*time.Second, r.Base)
	}
	return r
}

// BigQueryWriter is safe for the concurrent callbacks of a Pub/Sub receiver.
type BigQueryWriter struct {
	ins   Inserter
	retry Retry
	sleep func(context.Context, time.Duration) error

	mu    sync.Mutex
	sales pending[types.SaleLineRow]
	stock pending[types.StockEventRow]
}

// New validates cfg. A zero BatchSize writes every event straight through.
func New(ins Inserter, cfg Config) (*BigQueryWriter, error) {
	if ins == nil {
		return nil, errors.New("bigquery inserter required")
	}
	sales, stock := strings.TrimSpace(cfg.SalesTable), strings.TrimSpace(cfg.StockTable)
	if sales == "" || stock == "" {
		return nil, errors.New("sales and stock tables are required")
	}
	limit := max(cfg.BatchSize, 1)
	return &BigQueryWriter{
		ins:   ins,
		retry: cfg.Retry.withDefaults(),
		sleep: sleepCtx,
		sales: pending[types.SaleLineRow]{table: sales, limit: limit},
		stock: pending[types.StockEventRow]{table: stock, limit: limit},
	}, nil
}

// InsertSaleLines queues the lines of one sale event. The lines of an event
// always land in the same insert.
func (w *BigQueryWriter) InsertSaleLines(ctx context.Context, rows []types.SaleLineRow) error {
	if len(rows) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.sales.push(rows...) {
		return nil
	}
	return w.write(ctx, w.sales.table, w.sales.drain())
}

// InsertStock queues one stock row.
func (w *BigQueryWriter) InsertStock(ctx context.Context, row types.StockEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stock.push(row) {
		return nil
	}
	return w.write(ctx, w.stock.table, w.stock.drain())
}

// Flush writes whatever is queued in both tables, attempting both even when
// one fails.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return multierr.Append(
		w.write(ctx, w.sales.table, w.sales.drain()),
		w.write(ctx, w.stock.table, w.stock.drain()),
	)
}

// Run flushes on every tick until ctx ends, then once more. A non-positive
// interval only flushes at shutdown.
func (w *BigQueryWriter) Run(ctx context.Context, every time.Duration, onErr func(error)) {
	report := func(err error) {
		if err != nil && onErr != nil {
			onErr(err)
		}
	}
	var tick <-chan time.Time
	if every > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			report(w.Flush(context.WithoutCancel(ctx)))
			return
		case <-tick:
			report(w.Flush(ctx))
		}
	}
}

// write drops the rows on a final failure; the caller nacks and Pub/Sub
// redelivers the event.
func (w *BigQueryWriter) write(ctx context.Context, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	delay := w.retry.Base
	for attempt := 1; ; attempt++ {
		err := w.ins.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.Attempts || !transient(err) {
			return fmt.Errorf("insert %d rows into %s: %w", len(rows), table, err)
		}
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, w.retry.Cap)
	}
}

type pending[T any] struct {
	table string
	limit int
	rows  []T
}

// push queues rows and reports whether the batch is full.
func (p *pending[T]) push(rows ...T) bool {
	p.rows = append(p.rows, rows...)
	return len(p.rows) >= p.limit
}

func (p *pending[T]) drain() []any {
	out := make([]any, len(p.rows))
	for i := range p.rows {
		row := p.rows[i]
		out[i] = &row
	}
	p.rows = p.rows[:0]
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// transient reports whether every failure inside err is worth retrying.
func transient(err error) bool {
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		if len(put) == 0 {
			return false
		}
		for _, row := range put {
			if !transient(row.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, e := range multi {
			if !transient(e) {
				return false
			}
		}
		return true
	}

	var bqErr *cbigquery.Error
	if errors.As(err, &bqErr) {
		switch bqErr.Reason {
		case "backendError", "internalError", "rateLimitExceeded", "timeout":
			return true
		}
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}
