// Package repo persists the order and trade journal to Postgres. Rows are
// written by the journal worker from the update feed, so every write must
// be idempotent: orders upsert by (account_id, order_id), trades
// insert-ignore by (account_id, trade_id).
package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	Orders() IOrders
	Trades() ITrades
}

type Repo struct {
	journalDB *gorm.DB
}

func NewRepo(journalDB *gorm.DB) IRepo {
	return &Repo{journalDB: journalDB}
}

func (r *Repo) Orders() IOrders {
	return NewOrderSQLRepo(r.journalDB)
}

func (r *Repo) Trades() ITrades {
	return NewTradeSQLRepo(r.journalDB)
}
