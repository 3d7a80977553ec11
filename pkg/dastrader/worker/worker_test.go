package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	kafkawrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/kafka_wrapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockOrders struct {
	upserts []string
}

func (m *mockOrders) Upsert(_ context.Context, accountID string, order *model.Order) error {
	m.upserts = append(m.upserts, accountID+"/"+order.OrderID)
	return nil
}

func (m *mockOrders) ListByAccount(context.Context, string) ([]*model.Order, error) {
	return nil, nil
}

type mockTrades struct {
	inserts []string
}

func (m *mockTrades) Insert(_ context.Context, accountID string, trade *model.Trade) error {
	m.inserts = append(m.inserts, accountID+"/"+trade.TradeID)
	return nil
}

func (m *mockTrades) ListByAccount(context.Context, string, int) ([]*model.Trade, error) {
	return nil, nil
}

func newTestWorker() (*Worker, *mockOrders, *mockTrades) {
	orders := &mockOrders{}
	trades := &mockTrades{}
	w := &Worker{orders: orders, trades: trades, log: zap.NewNop().Sugar()}
	return w, orders, trades
}

func message(t *testing.T, ev *model.UpdateEvent) kafkawrapper.Message {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafkawrapper.Message{Topic: "dastrader.updates", Value: payload, Time: time.Now()}
}

func TestOrderEventIsJournaled(t *testing.T) {
	w, orders, trades := newTestWorker()

	ev := &model.UpdateEvent{
		AccountID: "ACC1",
		Kind:      model.UpdateKindOrder,
		Time:      time.Now(),
		Order:     &model.Order{OrderID: "1001", Symbol: "AAPL"},
	}
	require.NoError(t, w.handleMessage(context.Background(), message(t, ev)))

	assert.Equal(t, []string{"ACC1/1001"}, orders.upserts)
	assert.Empty(t, trades.inserts)
}

func TestTradeEventIsJournaled(t *testing.T) {
	w, _, trades := newTestWorker()

	ev := &model.UpdateEvent{
		AccountID: "ACC1",
		Kind:      model.UpdateKindTrade,
		Time:      time.Now(),
		Trade:     &model.Trade{TradeID: "501", Symbol: "AAPL"},
	}
	require.NoError(t, w.handleMessage(context.Background(), message(t, ev)))

	assert.Equal(t, []string{"ACC1/501"}, trades.inserts)
}

func TestSnapshotKindsAreIgnored(t *testing.T) {
	w, orders, trades := newTestWorker()

	for _, kind := range []model.UpdateKind{
		model.UpdateKindPosition,
		model.UpdateKindAccountInfo,
		model.UpdateKindBuyingPower,
		model.UpdateKindQuote,
		model.UpdateKindOrderAction,
	} {
		ev := &model.UpdateEvent{AccountID: "ACC1", Kind: kind, Time: time.Now()}
		require.NoError(t, w.handleMessage(context.Background(), message(t, ev)))
	}

	assert.Empty(t, orders.upserts)
	assert.Empty(t, trades.inserts)
}

func TestUnparseableMessageIsNotRetried(t *testing.T) {
	w, _, _ := newTestWorker()
	msg := kafkawrapper.Message{Value: []byte("not json")}
	assert.NoError(t, w.handleMessage(context.Background(), msg))
}

func TestEventWithMissingPayloadIsSkipped(t *testing.T) {
	w, orders, _ := newTestWorker()
	ev := &model.UpdateEvent{AccountID: "ACC1", Kind: model.UpdateKindOrder, Time: time.Now()}
	require.NoError(t, w.handleMessage(context.Background(), message(t, ev)))
	assert.Empty(t, orders.upserts)
}
