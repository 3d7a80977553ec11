package repo

import (
	"context"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
)

type IOrders interface {
	Upsert(ctx context.Context, accountID string, order *model.Order) error
	ListByAccount(ctx context.Context, accountID string) ([]*model.Order, error)
}

type ITrades interface {
	Insert(ctx context.Context, accountID string, trade *model.Trade) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*model.Trade, error)
}
