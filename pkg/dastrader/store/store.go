// Package store keeps the in-memory mirror of one account's terminal-side
// state. All updates funnel through the owning session's handler or
// command-completion path; a push and a returning refresh can race on the
// same record, and last-writer-wins is the accepted policy.
package store

import (
	"sync"
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// TradeRetention caps the trade ring: only the newest entries are kept.
const TradeRetention = 1000

// Store mirrors positions, orders, trades, quotes and the account/BP
// snapshots for a single account.
type Store struct {
	accountID string

	mu          sync.RWMutex
	positions   map[string]model.Position // by symbol
	orders      map[string]model.Order    // by order id
	tradeOrder  deque.Deque[string]       // trade ids, newest at front
	trades      map[string]model.Trade    // by trade id
	quotes      map[string]model.Quote    // by symbol
	accountInfo *model.AccountInfo
	buyingPower *model.BuyingPower
	lastUpdate  time.Time
}

func New(accountID string) *Store {
	return &Store{
		accountID: accountID,
		positions: make(map[string]model.Position),
		orders:    make(map[string]model.Order),
		trades:    make(map[string]model.Trade),
		quotes:    make(map[string]model.Quote),
	}
}

func (s *Store) AccountID() string { return s.accountID }

// ApplyPosition upserts one position by symbol, re-marking it against the
// latest known quote.
func (s *Store) ApplyPosition(p model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.quotes[p.Symbol]; ok {
		markToMarket(&p, &q)
	}
	s.positions[p.Symbol] = p
	s.touch()
}

// ReplacePositions swaps the whole position set, as a GET POSITIONS refresh
// does. A symbol the refresh no longer reports is gone.
func (s *Store) ReplacePositions(positions []model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make(map[string]model.Position, len(positions))
	for _, p := range positions {
		if q, ok := s.quotes[p.Symbol]; ok {
			markToMarket(&p, &q)
		}
		s.positions[p.Symbol] = p
	}
	s.touch()
}

// ApplyOrder upserts one order by order id.
func (s *Store) ApplyOrder(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = o
	s.touch()
}

// ReplaceOrders swaps the whole order set from a GET ORDERS refresh.
func (s *Store) ReplaceOrders(orders []model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]model.Order, len(orders))
	for _, o := range orders {
		s.orders[o.OrderID] = o
	}
	s.touch()
}

// ApplyTrade records a trade. A trade id seen before keeps its place in the
// ring but takes the most recent values; a new one goes to the front, and
// the ring drops its oldest entry past TradeRetention.
func (s *Store) ApplyTrade(t model.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.trades[t.TradeID]; seen {
		s.trades[t.TradeID] = t
		s.touch()
		return
	}
	s.trades[t.TradeID] = t
	s.tradeOrder.PushFront(t.TradeID)
	for s.tradeOrder.Len() > TradeRetention {
		evicted := s.tradeOrder.PopBack()
		delete(s.trades, evicted)
	}
	s.touch()
}

// ApplyTrades applies a batch refresh through the same dedup path.
func (s *Store) ApplyTrades(trades []model.Trade) {
	for _, t := range trades {
		s.ApplyTrade(t)
	}
}

func (s *Store) SetAccountInfo(info model.AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountInfo = &info
	s.touch()
}

func (s *Store) SetBuyingPower(bp model.BuyingPower) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyingPower = &bp
	s.touch()
}

// ApplyQuote stores the latest quote for a symbol and re-marks a held
// position of that symbol against it.
func (s *Store) ApplyQuote(q model.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
	if p, ok := s.positions[q.Symbol]; ok {
		markToMarket(&p, &q)
		s.positions[q.Symbol] = p
	}
	s.touch()
}

// markToMarket recomputes unrealized P&L from the quote's last price.
// Decimal arithmetic here so repeated re-marks do not accumulate float
// error; the result is stored back as the float the record carries.
func markToMarket(p *model.Position, q *model.Quote) {
	last, ok := q.Float("l")
	if !ok {
		return
	}
	p.MarkPrice = last
	mark := decimal.NewFromFloat(last)
	avg := decimal.NewFromFloat(p.AvgCost)
	qty := decimal.NewFromInt(int64(p.Quantity))
	diff := mark.Sub(avg)
	if p.Type == model.PositionTypeShort {
		diff = avg.Sub(mark)
	}
	p.UnrealizedPNL, _ = diff.Mul(qty).Float64()
}

func (s *Store) touch() { s.lastUpdate = time.Now() }

// Positions returns a copy of the current position set.
func (s *Store) Positions() []model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

func (s *Store) Position(symbol string) (model.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// Orders returns a copy of the current order set.
func (s *Store) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

func (s *Store) Order(orderID string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	return o, ok
}

// Trades returns the retained trades, newest first.
func (s *Store) Trades() []model.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Trade, 0, s.tradeOrder.Len())
	for i := 0; i < s.tradeOrder.Len(); i++ {
		out = append(out, s.trades[s.tradeOrder.At(i)])
	}
	return out
}

func (s *Store) TradeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tradeOrder.Len()
}

func (s *Store) AccountInfo() *model.AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accountInfo == nil {
		return nil
	}
	info := *s.accountInfo
	return &info
}

func (s *Store) BuyingPower() *model.BuyingPower {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buyingPower == nil {
		return nil
	}
	bp := *s.buyingPower
	return &bp
}

func (s *Store) Quote(symbol string) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	return q, ok
}

func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}
