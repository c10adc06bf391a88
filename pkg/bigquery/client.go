// Package bigquery wraps the dataset the analytics worker streams into.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/gcp"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	ErrNoDataset = errors.New("bigquery dataset is required")
	ErrNoTables  = errors.New("bigquery sales or stock table is required")
	ErrClosed    = errors.New("bigquery client not initialized")
)

// Client streams rows into the tables of a single dataset.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []string

	mu        sync.Mutex
	inserters map[string]*bigquery.Inserter
}

// NewClient connects and fails fast when the dataset or a configured table
// is missing.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project, err := gcp.Project(gcpCfg)
	if err != nil {
		return nil, err
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if dataset == "" {
		return nil, ErrNoDataset
	}
	tables := gcp.NonEmpty(cfg.SalesTable, cfg.StockTable)
	if len(tables) == 0 {
		return nil, ErrNoTables
	}

	bq, err := bigquery.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		bq:        bq,
		dataset:   bq.Dataset(dataset),
		tables:    tables,
		inserters: make(map[string]*bigquery.Inserter),
	}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "tables": tables}), "bigquery client initialized")
	}
	return c, nil
}

// Ping checks the dataset and every configured table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset", c.dataset.DatasetID, err)
	}
	for _, t := range c.tables {
		if _, err := c.dataset.Table(t).Metadata(ctx); err != nil {
			return describe("table", t, err)
		}
	}
	return nil
}

// InsertRows streams rows into table. Each row must be a ValueSaver or a
// struct (pointer) with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}
	ins, err := c.inserter(table)
	if err != nil {
		return err
	}
	return ins.Put(ctx, rows)
}

func (c *Client) inserter(table string) (*bigquery.Inserter, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, ErrNoTables
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ins, ok := c.inserters[table]
	if !ok {
		ins = c.dataset.Table(table).Inserter()
		c.inserters[table] = ins
	}
	return ins, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func describe(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
