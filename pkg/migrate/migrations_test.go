package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supserrr/vevurn-sub002/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.Validate(os.DirFS("migrations")); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestProductsMigrationGuardsStockAndPrice(t *testing.T) {
	assertContains(t, readMigration(t, "create_products_table"), []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CHECK (unit_price >= 0)",
		"CHECK (current_stock >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_products_barcode",
	})
}

func TestSalesMigrationConstrainsPaymentAndStatus(t *testing.T) {
	assertContains(t, readMigration(t, "create_sales_tables"), []string{
		"CREATE TABLE IF NOT EXISTS sales",
		"CREATE TABLE IF NOT EXISTS sale_items",
		"'CASH', 'MOMO_MTN', 'MOMO_AIRTEL', 'BANK_TRANSFER', 'CARD'",
		"status IN ('completed', 'voided')",
		"cash_received >= total_amount",
		"CHECK (quantity > 0)",
		"REFERENCES sales(id) ON DELETE CASCADE",
	})
}

func TestOutboxMigrationIndexesUnpublishedEvents(t *testing.T) {
	assertContains(t, readMigration(t, "create_outbox_tables"), []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"'sale.completed', 'sale.voided', 'stock.low'",
		"WHERE published_at IS NULL",
	})
}

func TestStaffMigrationRestrictsRoles(t *testing.T) {
	assertContains(t, readMigration(t, "create_staff_tables"), []string{
		"CREATE TABLE IF NOT EXISTS users",
		"CREATE TABLE IF NOT EXISTS customers",
		"role IN ('admin', 'manager', 'cashier')",
		"idx_users_email_lower",
	})
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
	require.NoError(t, migrate.Validate(migrate.Embedded()))
}

func TestCreateWritesValidMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Sale Notes!", now)
	require.NoError(t, err)
	assert.Equal(t, "20260302083000_add_sale_notes.sql", filepath.Base(path))
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "add sale notes", now)
	assert.Error(t, err, "same timestamp and slug must not overwrite")

	_, err = migrate.Create(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateRejectsBadFiles(t *testing.T) {
	up := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name": {
			"add_things.sql": {Data: []byte(up)},
		},
		"duplicate version": {
			"20260301090000_a.sql": {Data: []byte(up)},
			"20260301090000_b.sql": {Data: []byte(up)},
		},
		"missing down": {
			"20260301090000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, migrate.Validate(fsys))
		})
	}

	ok := fstest.MapFS{
		"20260301090000_a.sql": {Data: []byte(up)},
		"README.md":            {Data: []byte("notes")},
	}
	assert.NoError(t, migrate.Validate(ok))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "add_sale_notes", migrate.Slug("  Add  Sale-Notes! "))
	assert.Equal(t, "", migrate.Slug("***"))
}
