package database

import (
	"context"
	"fmt"
	stdlog "log"
	"path/filepath"
	"time"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sqliteFile = "supergear.db"

type DB struct {
	log     zerolog.Logger
	handler *gorm.DB
	ctx     context.Context
	cancel  func()

	Driver string
	DSN    string
}

func NewDB(cfg *domain.Config, log logger.Logger) (*DB, error) {
	db := &DB{
		log: log.With().Str("module", "database").Logger(),
	}
	db.ctx, db.cancel = context.WithCancel(context.Background())

	switch cfg.Database.Type {
	case "sqlite":
		db.Driver = "sqlite"
		db.DSN = dataSourceName(cfg.ConfigPath, sqliteFile)
	case "postgres", "postgresql":
		pg := cfg.Database.Postgres
		if pg.Host == "" || pg.Port == 0 || pg.Database == "" {
			return nil, errors.New("postgres configuration is incomplete")
		}
		db.Driver = "postgres"
		db.DSN = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pg.Host, pg.Port, pg.User, pg.Pass, pg.Database, pg.SslMode)
	default:
		return nil, errors.Errorf("unsupported database type: %v", cfg.Database.Type)
	}

	return db, nil
}

func dataSourceName(configPath string, name string) string {
	if configPath != "" {
		return filepath.Join(configPath, name)
	}
	return name
}

// gormLogLevel maps the component log level onto gorm's coarser levels.
func gormLogLevel(level zerolog.Level) gormlogger.LogLevel {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel, zerolog.InfoLevel:
		return gormlogger.Info
	case zerolog.WarnLevel:
		return gormlogger.Warn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

func (db *DB) Open() error {
	if db.DSN == "" {
		return errors.New("database DSN is required but not configured")
	}

	var dialector gorm.Dialector
	switch db.Driver {
	case "sqlite":
		dialector = sqlite.Open(db.DSN)
		db.log.Debug().Str("dsn", db.DSN).Msg("using sqlite driver")
	case "postgres":
		dialector = postgres.Open(db.DSN)
		db.log.Debug().Msg("using postgres driver")
	default:
		return errors.Errorf("unsupported database driver: %s", db.Driver)
	}

	handler, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(
			stdlog.New(db.log, "", 0),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormLogLevel(db.log.GetLevel()),
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed to connect database")
	}
	db.handler = handler

	if err := db.handler.AutoMigrate(
		&documentRecord{},
		&snapshotRecord{},
		&credentialRecord{},
	); err != nil {
		return errors.Wrap(err, "failed to run database auto-migrations")
	}

	db.log.Info().Str("driver", db.Driver).Msg("database ready")

	return nil
}

func (db *DB) Close() error {
	db.cancel()

	if db.handler == nil {
		return nil
	}

	sqlDB, err := db.handler.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying *sql.DB")
	}

	return sqlDB.Close()
}

func (db *DB) Ping() error {
	if db.handler == nil {
		return errors.New("database handler is not initialized")
	}

	sqlDB, err := db.handler.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying *sql.DB")
	}

	if err := sqlDB.PingContext(db.ctx); err != nil {
		db.log.Warn().Err(err).Msg("database ping failed")
		return errors.Wrap(err, "database ping failed")
	}

	return nil
}

// Get returns the underlying gorm handle.
func (db *DB) Get() *gorm.DB {
	return db.handler
}
