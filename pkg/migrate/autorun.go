package migrate

import (
	"context"
	"fmt"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/db"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup in dev when the
// auto-migrate flag is on. Other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("migrate: sql handle: %w", err)
	}
	runner, err := NewRunner(sqlDB, Embedded(), logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying embedded migrations")
	return runner.Up(ctx)
}
