package main

import (
	"flag"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/config"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/infra"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/logging"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	if _, err := logging.Init(cfg.LogLevel); err != nil {
		panic(err)
	}

	if cfg.JournalDB == nil {
		panic("journal_db config is required")
	}

	source := cfg.MigrationSource
	if source == "" {
		source = "file://migrations"
	}
	if err := infra.MigrateWithBackoff(source, cfg.JournalDB.MigrationConnURL); err != nil {
		zap.S().Errorf("migrate fail with err: %v", err)
		panic(err)
	}
	zap.S().Info("migrations applied")
}
