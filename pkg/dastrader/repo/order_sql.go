package repo

import (
	"context"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderSQLRepo struct {
	db *gorm.DB
}

func NewOrderSQLRepo(db *gorm.DB) *OrderSQLRepo {
	return &OrderSQLRepo{db: db}
}

func (s *OrderSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Upsert keeps the latest state per (account_id, order_id): the terminal
// re-reports an order on every status change.
func (s *OrderSQLRepo) Upsert(ctx context.Context, accountID string, order *model.Order) error {
	row := orderRowFromModel(accountID, order)
	return s.dbWithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"token", "symbol", "side", "order_type", "quantity",
			"left_quantity", "canceled_quantity", "price", "route",
			"status", "order_time", "original_order_id", "account",
			"trader", "order_source", "updated_at",
		}),
	}).Create(row).Error
}

func (s *OrderSQLRepo) ListByAccount(ctx context.Context, accountID string) ([]*model.Order, error) {
	var rows []*OrderRow
	err := s.dbWithContext(ctx).
		Where("account_id = ?", accountID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
