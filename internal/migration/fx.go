package migration

import (
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply migrates the schema on startup unless DATABASE_AUTO_MIGRATE is off.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.DBAutoMigrate {
		log.Info("migrations.skipped")
		return nil
	}

	if cfg.DBType != db.TypePostgres {
		log.Info("migrations.auto", zap.String("type", cfg.DBType))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("migrations.applied")
	return nil
}
