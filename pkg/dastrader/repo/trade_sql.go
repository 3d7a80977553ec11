package repo

import (
	"context"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TradeSQLRepo struct {
	db *gorm.DB
}

func NewTradeSQLRepo(db *gorm.DB) *TradeSQLRepo {
	return &TradeSQLRepo{db: db}
}

func (s *TradeSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Insert is insert-ignore on (account_id, trade_id): the same fill arrives
// both as a push line and in GET TRADES refreshes.
func (s *TradeSQLRepo) Insert(ctx context.Context, accountID string, trade *model.Trade) error {
	row := tradeRowFromModel(accountID, trade)
	return s.dbWithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "trade_id"}},
		DoNothing: true,
	}).Create(row).Error
}

func (s *TradeSQLRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]*model.Trade, error) {
	var rows []*TradeRow
	q := s.dbWithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}
