package pg

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"namiokai/config"
)

// DefaultDSN is used when neither DATABASE_URL nor DATABASE_PASSWORD is set.
const DefaultDSN = "host=localhost user=postgres dbname=postgres port=5432 sslmode=disable"

// CreateDSN builds the connection string, databaseURL first, then the
// DATABASE_PASSWORD family of variables, and points its search path at the
// application schema.
func CreateDSN(databaseURL string) string {
	connStr := DefaultDSN
	if databaseURL != "" {
		connStr = databaseURL
		slog.Info("using DATABASE_URL")
	} else if os.Getenv("DATABASE_PASSWORD") != "" {
		dbUser := "postgres"
		if os.Getenv("DATABASE_USER") != "" {
			dbUser = os.Getenv("DATABASE_USER")
		}
		host := "127.0.0.1"
		if os.Getenv("DATABASE_HOST") != "" {
			host = os.Getenv("DATABASE_HOST")
		}
		connStr = fmt.Sprintf("host=%s user=%s dbname=postgres password=%s port=5432 sslmode=disable", host, dbUser, os.Getenv("DATABASE_PASSWORD"))
		slog.Info("using DATABASE_PASSWORD", "host", host, "user", dbUser)
	} else {
		slog.Info("using default connection string", "dsn", connStr)
	}

	// dsn should point to target schema for the app
	return withSearchPath(connStr, config.AppName)
}

func withSearchPath(connStr, schema string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		sep := "?"
		if strings.Contains(connStr, "?") {
			sep = "&"
		}
		return connStr + sep + "search_path=" + schema
	}
	return connStr + fmt.Sprintf(" search_path=%s", schema)
}

func CloseGORM(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("getting underlying sql.DB from GORM", "error", err)
		return
	}
	sqlDB.Close()
}

// InitPostgresGORM initializes a new GORM DB connection to PostgreSQL.
func InitPostgresGORM(dsn string) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // Slow SQL threshold
			LogLevel:      logger.Silent, // Log level (Silent, Error, Warn, Info)
			Colorful:      true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Ping the database to ensure connection is alive
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
