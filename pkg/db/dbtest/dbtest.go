// Package dbtest opens throwaway SQLite databases migrated with the POS
// models, for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/db/models"
)

// AllModels lists every table the services touch.
func AllModels() []any {
	return []any{
		&models.Product{},
		&models.Customer{},
		&models.User{},
		&models.Sale{},
		&models.SaleItem{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns a gorm handle on a private in-memory database. The pool is
// pinned to one connection so every query sees the same database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in the pkg/db client used by services.
func Client(t *testing.T) *db.Client {
	t.Helper()
	return db.NewFromGorm(Open(t))
}
