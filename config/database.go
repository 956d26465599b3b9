package config

import (
	"context"
	"fmt"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folio/portfolio/models"
)

// DSN returns the connection string for the configured database. An explicit
// DatabaseURI wins over the individual fields.
func DSN(c AppConfig) string {
	if c.DatabaseURI != "" {
		return c.DatabaseURI
	}
	return driverConfig(c, c.DBName).FormatDSN()
}

// ServerDSN points at the MySQL server without selecting a schema, for
// provisioning before the database exists.
func ServerDSN(c AppConfig) string {
	if c.DatabaseURI != "" {
		parsed, err := mysqldriver.ParseDSN(c.DatabaseURI)
		if err == nil {
			parsed.DBName = ""
			return parsed.FormatDSN()
		}
	}
	return driverConfig(c, "").FormatDSN()
}

// DatabaseName returns the schema the application uses.
func DatabaseName(c AppConfig) string {
	if c.DatabaseURI != "" {
		if parsed, err := mysqldriver.ParseDSN(c.DatabaseURI); err == nil && parsed.DBName != "" {
			return parsed.DBName
		}
	}
	return c.DBName
}

func driverConfig(c AppConfig, dbName string) *mysqldriver.Config {
	dc := mysqldriver.NewConfig()
	dc.User = c.DBUser
	dc.Passwd = c.DBPassword
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.DBHost, c.DBPort)
	dc.DBName = dbName
	dc.ParseTime = true
	dc.Loc = time.Local
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc
}

// InitDatabase connects to MySQL, tunes the pool, verifies connectivity and
// migrates the comments table.
func InitDatabase(c AppConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(c)), &gorm.Config{
		Logger: NewGormLogger(log, c.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	// Recycle idle connections before the server's wait_timeout drops them.
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or extends the schema. Migrations are additive only.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Comment{}); err != nil {
		return fmt.Errorf("migrate comments: %w", err)
	}
	return nil
}

// NewGormLogger routes GORM's output through zap. Slow queries are reported
// above two seconds; per-statement SQL only shows at debug level.
func NewGormLogger(log *zap.Logger, level string) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	return logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(level),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
