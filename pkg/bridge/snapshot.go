package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/store"
	"github.com/redis/go-redis/v9"
)

// AccountSnapshot is the read model the dashboard facade serves without
// touching a live session.
type AccountSnapshot struct {
	AccountID   string             `json:"account_id"`
	Positions   []model.Position   `json:"positions"`
	Orders      []model.Order      `json:"orders"`
	Trades      []model.Trade      `json:"trades"`
	AccountInfo *model.AccountInfo `json:"account_info,omitempty"`
	BuyingPower *model.BuyingPower `json:"buying_power,omitempty"`
	LastUpdate  time.Time          `json:"last_update"`
}

// BuildSnapshot copies the store's current state into a snapshot.
func BuildSnapshot(st *store.Store) *AccountSnapshot {
	return &AccountSnapshot{
		AccountID:   st.AccountID(),
		Positions:   st.Positions(),
		Orders:      st.Orders(),
		Trades:      st.Trades(),
		AccountInfo: st.AccountInfo(),
		BuyingPower: st.BuyingPower(),
		LastUpdate:  st.LastUpdate(),
	}
}

// SnapshotCache keeps the latest per-account snapshot in Redis with a TTL.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl == 0 {
		ttl = time.Minute
	}
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(accountID string) string {
	return fmt.Sprintf("das:snapshot:%s", accountID)
}

func (c *SnapshotCache) Set(ctx context.Context, snap *AccountSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.rdb.Set(ctx, snapshotKey(snap.AccountID), payload, c.ttl).Err()
}

func (c *SnapshotCache) Get(ctx context.Context, accountID string) (*AccountSnapshot, error) {
	payload, err := c.rdb.Get(ctx, snapshotKey(accountID)).Bytes()
	if err != nil {
		return nil, err
	}
	var snap AccountSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
