package postgres_wrapper

import (
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/lib/pq" // nolint
	"go.uber.org/zap"
	pg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

type PostgresConfig struct {
	DataSource                 string          `yaml:"data_source"`
	MaxOpenConns               int             `yaml:"max_open_conns"`
	MaxIdleConns               int             `yaml:"max_idle_conns"`
	ConnMaxLifeTimeMiliseconds int64           `yaml:"conn_max_life_time_ms"`
	MigrationConnURL           string          `yaml:"migration_conn_url"`
	SlaveSources               []string        `yaml:"slave_sources"`
	LogLevel                   logger.LogLevel `yaml:"log_level"`
}

// InitPostgres opens the journal database, registering read replicas when
// slave sources are configured.
func InitPostgres(cfg *PostgresConfig) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      cfg.LogLevel,
		},
	)

	db, err := gorm.Open(pg.Open(cfg.DataSource), &gorm.Config{Logger: gormLogger})
	if err != nil {
		zap.S().Warnw("open postgres failed", "error", err)
		return nil, err
	}

	if len(cfg.SlaveSources) > 0 {
		var replicas []gorm.Dialector
		for _, s := range cfg.SlaveSources {
			replicas = append(replicas, pg.Open(s))
		}
		err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			zap.S().Warnw("register postgres replicas failed", "error", err)
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTimeMiliseconds) * time.Millisecond)

	return db, nil
}

// InitPostgresWithBackoff retries the open with exponential backoff, for
// workers that start before the database is up.
func InitPostgresWithBackoff(cfg *PostgresConfig) (*gorm.DB, error) {
	var db *gorm.DB
	boff := backoff.NewExponentialBackOff()
	err := backoff.Retry(func() error {
		var err error
		db, err = InitPostgres(cfg)
		if err != nil {
			zap.S().Warnw("postgres not ready, retrying", "error", err)
		}
		return err
	}, boff)
	if err != nil {
		return nil, err
	}
	return db, nil
}
