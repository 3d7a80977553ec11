package repo

import (
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
)

// OrderRow is the journal shape of an order. Price is nullable: NULL means
// a market order on the wire.
type OrderRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	AccountID        string `gorm:"column:account_id;uniqueIndex:uq_orders_account_order"`
	OrderID          string `gorm:"column:order_id;uniqueIndex:uq_orders_account_order"`
	Token            string
	Symbol           string
	Side             string
	OrderType        string
	Quantity         int
	LeftQuantity     int
	CanceledQuantity int
	Price            *float64
	Route            string
	Status           string
	OrderTime        string `gorm:"column:order_time"`
	OriginalOrderID  string
	Account          string
	Trader           string
	OrderSource      string
	UpdatedAt        time.Time
}

func (OrderRow) TableName() string { return "das_orders" }

func orderRowFromModel(accountID string, o *model.Order) *OrderRow {
	return &OrderRow{
		AccountID:        accountID,
		OrderID:          o.OrderID,
		Token:            o.Token,
		Symbol:           o.Symbol,
		Side:             string(o.Side),
		OrderType:        o.OrderType,
		Quantity:         o.Quantity,
		LeftQuantity:     o.LeftQuantity,
		CanceledQuantity: o.CanceledQuantity,
		Price:            o.Price,
		Route:            o.Route,
		Status:           o.Status,
		OrderTime:        o.Time,
		OriginalOrderID:  o.OriginalOrderID,
		Account:          o.Account,
		Trader:           o.Trader,
		OrderSource:      o.OrderSource,
	}
}

func (r *OrderRow) toModel() *model.Order {
	return &model.Order{
		OrderID:          r.OrderID,
		Token:            r.Token,
		Symbol:           r.Symbol,
		Side:             model.OrderSide(r.Side),
		OrderType:        r.OrderType,
		Quantity:         r.Quantity,
		LeftQuantity:     r.LeftQuantity,
		CanceledQuantity: r.CanceledQuantity,
		Price:            r.Price,
		Route:            r.Route,
		Status:           r.Status,
		Time:             r.OrderTime,
		OriginalOrderID:  r.OriginalOrderID,
		Account:          r.Account,
		Trader:           r.Trader,
		OrderSource:      r.OrderSource,
	}
}

// TradeRow is the journal shape of a fill.
type TradeRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	AccountID  string `gorm:"column:account_id;uniqueIndex:uq_trades_account_trade"`
	TradeID    string `gorm:"column:trade_id;uniqueIndex:uq_trades_account_trade"`
	Symbol     string
	Side       string
	Quantity   int
	Price      float64
	Route      string
	TradeTime  string `gorm:"column:trade_time"`
	OrderID    string
	Liquidity  string
	ECNFee     float64 `gorm:"column:ecn_fee"`
	RealizedPL float64 `gorm:"column:realized_pl"`
	CreatedAt  time.Time
}

func (TradeRow) TableName() string { return "das_trades" }

func tradeRowFromModel(accountID string, t *model.Trade) *TradeRow {
	return &TradeRow{
		AccountID:  accountID,
		TradeID:    t.TradeID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Quantity:   t.Quantity,
		Price:      t.Price,
		Route:      t.Route,
		TradeTime:  t.Time,
		OrderID:    t.OrderID,
		Liquidity:  t.Liquidity,
		ECNFee:     t.ECNFee,
		RealizedPL: t.RealizedPL,
	}
}

func (r *TradeRow) toModel() *model.Trade {
	return &model.Trade{
		TradeID:    r.TradeID,
		Symbol:     r.Symbol,
		Side:       model.OrderSide(r.Side),
		Quantity:   r.Quantity,
		Price:      r.Price,
		Route:      r.Route,
		Time:       r.TradeTime,
		OrderID:    r.OrderID,
		Liquidity:  r.Liquidity,
		ECNFee:     r.ECNFee,
		RealizedPL: r.RealizedPL,
	}
}
