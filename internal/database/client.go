// Package database opens gorm connections with the process logger wired in.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/birthchart/internal/log"
)

// Config creates the gorm configuration shared by every connection. SQL
// slower than a second and all errors except record-not-found are logged.
func Config(l *zap.Logger) *gorm.Config {
	dbLogger := logger.New(
		zap.NewStdLog(l),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{Logger: dbLogger}
}

// CreateConnection opens a PostgreSQL connection with the standard gorm
// configuration.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	log.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), Config(log.Logger().Desugar()))
	if err != nil {
		return nil, fmt.Errorf("unable to create a PostgreSQL connection: %w", err)
	}
	log.Info("PostgreSQL connection successful")
	return db, nil
}
