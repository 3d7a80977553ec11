// Package worker journals the update feed: it consumes the Kafka update
// topic and persists order and trade updates through the repo. Other
// update kinds are point-in-time snapshots and are not journaled.
package worker

import (
	"context"
	"encoding/json"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/repo"
	kafkawrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/kafka_wrapper"
	"go.uber.org/zap"
)

type Worker struct {
	orders repo.IOrders
	trades repo.ITrades
	log    *zap.SugaredLogger
}

func NewWorker(r repo.IRepo) *Worker {
	return &Worker{
		orders: r.Orders(),
		trades: r.Trades(),
		log:    zap.S().With("component", "journal-worker"),
	}
}

// Run consumes until the context ends.
func (w *Worker) Run(ctx context.Context, cg *kafkawrapper.ConsumerGroup) error {
	return cg.Run(ctx, w.handleMessage)
}

func (w *Worker) handleMessage(ctx context.Context, m kafkawrapper.Message) error {
	var ev model.UpdateEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		// not retryable, drop it
		w.log.Warnw("unparseable update event", "offset", m.Offset, "error", err)
		return nil
	}
	return w.handleEvent(ctx, &ev)
}

func (w *Worker) handleEvent(ctx context.Context, ev *model.UpdateEvent) error {
	switch ev.Kind {
	case model.UpdateKindOrder:
		if ev.Order == nil {
			return nil
		}
		return w.orders.Upsert(ctx, ev.AccountID, ev.Order)
	case model.UpdateKindTrade:
		if ev.Trade == nil {
			return nil
		}
		return w.trades.Insert(ctx, ev.AccountID, ev.Trade)
	}
	return nil
}
