// internal/database/connection.go
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/commission-backend/internal/config"
	"github.com/javajoker/commission-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: NewGormLogger(log, cfg.LogLevel),
		// Unique violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{"host": cfg.Host, "database": cfg.Database}).Info("Database connection established successfully")
	return db, nil
}

// NewGormLogger routes gorm's SQL logging through logrus.
func NewGormLogger(log logrus.FieldLogger, level string) logger.Interface {
	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLogLevel(level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

func Close(db *gorm.DB, log logrus.FieldLogger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Error("Error closing database connection")
	} else {
		log.Info("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB, log logrus.FieldLogger) error {
	log.Info("Running database migrations...")

	// gen_random_uuid() on PostgreSQL < 13
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto").Error; err != nil {
		return fmt.Errorf("failed to create pgcrypto extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.Affiliate{},
		&models.Payment{},
		&models.CommissionRecord{},
		&models.SplitRecord{},
		&models.WalletValidation{},
		&models.WebhookEvent{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	createIndexes(db, log)

	log.Info("Database migrations completed successfully")
	return nil
}

// indexes complements the gorm tags with composite and partial indexes.
var indexes = []string{
	// Affiliate indexes
	"CREATE INDEX IF NOT EXISTS idx_affiliates_referred_by_status ON affiliates(referred_by, payment_status) WHERE deleted_at IS NULL",

	// Payment indexes
	"CREATE INDEX IF NOT EXISTS idx_payments_affiliate_status ON payments(affiliate_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_payments_confirmed_paid_at ON payments(kind, paid_at) WHERE status = 'confirmed'",

	// Commission ledger indexes
	"CREATE INDEX IF NOT EXISTS idx_commission_records_affiliate_created ON commission_records(affiliate_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_commission_records_order ON commission_records(order_id, role)",

	// Split indexes
	"CREATE INDEX IF NOT EXISTS idx_split_records_retryable ON split_records(status, attempts, updated_at) WHERE external_split_id IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_split_records_stale_pending ON split_records(updated_at) WHERE status = 'pending' AND external_split_id IS NULL",

	// Webhook indexes
	"CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON webhook_events(created_at) WHERE processed_at IS NULL",

	// Admin indexes
	"CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_action ON audit_logs(actor_id, action)",
	"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
	"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_notifications_affiliate_status ON notifications(affiliate_id, status, created_at DESC)",
}

func createIndexes(db *gorm.DB, log logrus.FieldLogger) {
	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			// Continue with other indexes instead of failing completely
			log.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}
}
