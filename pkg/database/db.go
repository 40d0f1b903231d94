package database

import (
	"fmt"

	"github.com/wipnet/wip-nexus/pkg/config"
	"github.com/wipnet/wip-nexus/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// DB wraps the GORM database connection
type DB struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewDB creates a new database connection and runs migrations
func NewDB(cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dblog := log.WithComponent("database")

	gormConfig := &gorm.Config{
		Logger: gormlogger.New(
			&gormLogAdapter{log: dblog},
			gormlogger.Config{
				LogLevel: gormlogger.Warn,
			},
		),
	}

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite tuning for a single-writer server workload
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.AutoMigrate(&Area{}, &Forecast{}, &Report{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	dblog.Info("Database initialized", logger.String("path", cfg.Path))

	return &DB{db: db, log: dblog}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying GORM database handle
func (d *DB) GetDB() *gorm.DB {
	return d.db
}

// gormLogAdapter bridges GORM's logger to our structured logger
type gormLogAdapter struct {
	log *logger.Logger
}

func (a *gormLogAdapter) Printf(format string, args ...interface{}) {
	a.log.Info(fmt.Sprintf(format, args...))
}
