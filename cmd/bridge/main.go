package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/config"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/bridge"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader"
	redis_wrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/infra/redis"
	kafkawrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/kafka_wrapper"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/logging"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var producer *kafkawrapper.Producer
	updateTopic := ""
	if cfg.UpdateFeed != nil && cfg.UpdateFeed.Producer != nil {
		producer = kafkawrapper.NewProducer(*cfg.UpdateFeed.Producer)
		updateTopic = cfg.UpdateFeed.Topic
	}

	var snapshots *bridge.SnapshotCache
	if cfg.Snapshot != nil && cfg.Snapshot.Redis != nil {
		rdb, err := redis_wrapper.InitRedis(cfg.Snapshot.Redis)
		if err != nil {
			zap.S().Errorf("init redis fail with err: %v", err)
			panic(err)
		}
		snapshots = bridge.NewSnapshotCache(rdb, cfg.SnapshotTTL())
	}

	registry := dastrader.NewRegistry(cfg.Timeouts())
	b := bridge.New(bridge.Config{
		UpdateTopic:     updateTopic,
		RefreshInterval: cfg.RefreshInterval(),
	}, registry, producer, snapshots)

	accounts := cfg.EnabledAccounts()
	for _, acct := range accounts {
		b.Register(acct.AccountID, acct.Credential)
	}

	results := b.ConnectAll(ctx)
	for accountID, ok := range results {
		if ok {
			zap.S().Infow("account connected", "account_id", accountID)
		} else {
			zap.S().Warnw("account connect failed", "account_id", accountID)
		}
	}

	b.Start(ctx)
	zap.S().Infow("bridge started", "accounts", len(accounts))

	<-sigs
	zap.S().Info("shutting down")

	cancel()
	b.Close()

	zap.S().Info("exited cleanly")
}
