package store

import (
	"fmt"
	"testing"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTradeDedup(t *testing.T) {
	st := New("ACC1")

	st.ApplyTrade(model.Trade{TradeID: "501", Symbol: "AAPL", Quantity: 100, Price: 150.45})
	st.ApplyTrade(model.Trade{TradeID: "502", Symbol: "TSLA", Quantity: 50, Price: 242.10})
	// refresh re-reports 501 with updated values
	st.ApplyTrade(model.Trade{TradeID: "501", Symbol: "AAPL", Quantity: 100, Price: 150.45, RealizedPL: 3.25})

	require.Equal(t, 2, st.TradeCount())
	trades := st.Trades()
	require.Len(t, trades, 2)
	// 502 was pushed after 501, so it stays newest
	assert.Equal(t, "502", trades[0].TradeID)
	assert.Equal(t, "501", trades[1].TradeID)
	assert.Equal(t, 3.25, trades[1].RealizedPL)
}

func TestTradeRetentionCap(t *testing.T) {
	st := New("ACC1")
	for i := 0; i < TradeRetention+25; i++ {
		st.ApplyTrade(model.Trade{TradeID: fmt.Sprintf("t%05d", i), Symbol: "AAPL"})
	}

	require.Equal(t, TradeRetention, st.TradeCount())
	trades := st.Trades()
	assert.Equal(t, fmt.Sprintf("t%05d", TradeRetention+24), trades[0].TradeID)
	// the oldest 25 were evicted
	assert.Equal(t, fmt.Sprintf("t%05d", 25), trades[len(trades)-1].TradeID)
}

func TestReplacePositionsDropsStale(t *testing.T) {
	st := New("ACC1")
	st.ApplyPosition(model.Position{Symbol: "AAPL", Quantity: 100, AvgCost: 150})
	st.ApplyPosition(model.Position{Symbol: "TSLA", Quantity: 50, AvgCost: 242})

	st.ReplacePositions([]model.Position{{Symbol: "AAPL", Quantity: 80, AvgCost: 151}})

	require.Len(t, st.Positions(), 1)
	p, ok := st.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 80, p.Quantity)
	_, ok = st.Position("TSLA")
	assert.False(t, ok, "symbol missing from refresh must be dropped")
}

func TestApplyQuoteRemarksPosition(t *testing.T) {
	st := New("ACC1")
	st.ApplyPosition(model.Position{Symbol: "AAPL", Type: model.PositionTypeMargin, Quantity: 100, AvgCost: 150})

	st.ApplyQuote(model.Quote{Symbol: "AAPL", Fields: map[string]any{"l": 152.5}})

	p, ok := st.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 152.5, p.MarkPrice)
	assert.InDelta(t, 250.0, p.UnrealizedPNL, 1e-9)
}

func TestApplyQuoteRemarksShortPosition(t *testing.T) {
	st := New("ACC1")
	st.ApplyQuote(model.Quote{Symbol: "TSLA", Fields: map[string]any{"l": 240.0}})

	// position arriving after the quote is marked on apply
	st.ApplyPosition(model.Position{Symbol: "TSLA", Type: model.PositionTypeShort, Quantity: 50, AvgCost: 242})

	p, ok := st.Position("TSLA")
	require.True(t, ok)
	// short gains when the mark drops below avg cost
	assert.InDelta(t, 100.0, p.UnrealizedPNL, 1e-9)
}

func TestQuoteWithoutLastPriceLeavesMarkAlone(t *testing.T) {
	st := New("ACC1")
	st.ApplyPosition(model.Position{Symbol: "AAPL", Quantity: 100, AvgCost: 150, UnrealizedPNL: 12.5})

	st.ApplyQuote(model.Quote{Symbol: "AAPL", Fields: map[string]any{"v": 1000}})

	p, _ := st.Position("AAPL")
	assert.Equal(t, 12.5, p.UnrealizedPNL)
	assert.Zero(t, p.MarkPrice)
}

func TestSnapshotsCopyOnRead(t *testing.T) {
	st := New("ACC1")
	assert.Nil(t, st.AccountInfo())
	assert.Nil(t, st.BuyingPower())

	st.SetAccountInfo(model.AccountInfo{NetPL: 125.5})
	st.SetBuyingPower(model.BuyingPower{CurrentBP: 200000})

	info := st.AccountInfo()
	require.NotNil(t, info)
	info.NetPL = 0
	assert.Equal(t, 125.5, st.AccountInfo().NetPL, "caller mutation must not reach the store")

	bp := st.BuyingPower()
	require.NotNil(t, bp)
	assert.Equal(t, 200000.0, bp.CurrentBP)
}

func TestApplyOrderUpsert(t *testing.T) {
	st := New("ACC1")
	st.ApplyOrder(model.Order{OrderID: "1001", Symbol: "AAPL", Status: "Accepted"})
	st.ApplyOrder(model.Order{OrderID: "1001", Symbol: "AAPL", Status: "Executed"})

	require.Len(t, st.Orders(), 1)
	o, ok := st.Order("1001")
	require.True(t, ok)
	assert.Equal(t, "Executed", o.Status)
}
