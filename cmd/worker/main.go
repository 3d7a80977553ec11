package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/config"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/repo"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/worker"
	postgres_wrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/infra/postgres"
	kafkawrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/kafka_wrapper"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/logging"
	_ "github.com/lib/pq"
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

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	if cfg.JournalDB == nil {
		zap.S().Error("journal_db config is required")
		panic("journal_db config is required")
	}
	if cfg.UpdateFeed == nil || cfg.UpdateFeed.Consumer == nil {
		zap.S().Error("update_feed.consumer config is required")
		panic("update_feed.consumer config is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	db, err := postgres_wrapper.InitPostgresWithBackoff(cfg.JournalDB)
	if err != nil {
		zap.S().Errorf("init db fail with err: %v", err)
		panic(err)
	}

	sqlRepo := repo.NewRepo(db)

	consumerCfg := *cfg.UpdateFeed.Consumer
	if consumerCfg.Topic == "" {
		consumerCfg.Topic = cfg.UpdateFeed.Topic
	}
	cg := kafkawrapper.NewConsumerGroup(consumerCfg)
	defer cg.Close()

	w := worker.NewWorker(sqlRepo)
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx, cg)
	}()

	zap.S().Infow("journal worker started", "topic", consumerCfg.Topic, "group_id", consumerCfg.GroupID)

	select {
	case <-sigs:
		zap.S().Info("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			zap.S().Errorf("consumer stopped with err: %v", err)
		}
	}

	zap.S().Info("exited cleanly")
}
