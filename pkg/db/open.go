package db

import (
	"github.com/smallbiznis/quickinvoice/internal/config"
	obslogger "github.com/smallbiznis/quickinvoice/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Open connects to the SQL backend selected by cfg.StorageBackend.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialect, &gorm.Config{
		Logger: obslogger.NewGormLogger(log, obslogger.DefaultGormLoggerConfig()),
	})
}
